package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/NikitaSitlivy/fingercloak-api/metric"
)

// rateLimiter is a fixed-window per-IP limiter for the ingest routes.
type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	seen   map[string]*ipWindow
}

type ipWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		window: window,
		limit:  limit,
		seen:   make(map[string]*ipWindow),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.seen[ip]
	if !ok || now.Sub(w.start) >= rl.window {
		// Window rollover doubles as cleanup when the map grows.
		if len(rl.seen) > 10000 {
			for k, v := range rl.seen {
				if now.Sub(v.start) >= rl.window {
					delete(rl.seen, k)
				}
			}
		}
		rl.seen[ip] = &ipWindow{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= rl.limit
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"ok": false, "error": "Too Many Requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware enforces the origin allow-list. Requests without an
// Origin header pass (curl, health probes).
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	normalized := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		normalized[normalizeOrigin(o)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := normalized[normalizeOrigin(origin)]; !ok {
				writeJSON(w, http.StatusForbidden, map[string]any{
					"ok": false, "error": "CORS blocked",
				})
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Fc-Corr")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// normalizeOrigin strips stray quotes and trailing slashes the way
// misconfigured deploy environments tend to produce them.
func normalizeOrigin(o string) string {
	o = strings.TrimSpace(o)
	o = strings.Trim(o, `'"`)
	o = strings.TrimRight(o, "/")
	return strings.ToLower(o)
}

// metricsMiddleware accounts finished requests by route pattern and
// status.
func metricsMiddleware(m *metric.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(route, strconv.Itoa(ww.Status()), time.Since(start))
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the socket
// address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); first != "" {
			return first
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return "local"
	}
	return host
}
