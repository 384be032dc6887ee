package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/config"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/fingerprint"
	"github.com/NikitaSitlivy/fingercloak-api/ingest"
	"github.com/NikitaSitlivy/fingercloak-api/metric"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
	"github.com/NikitaSitlivy/fingercloak-api/snapstore"
)

const (
	ingestRateLimit  = 60
	ingestRateWindow = 15 * time.Second
)

var knownKinds = map[string]chunkstore.Kind{
	"edge":   chunkstore.KindEdge,
	"dns":    chunkstore.KindDNS,
	"webrtc": chunkstore.KindWebRTC,
	"tls":    chunkstore.KindTLS,
	"tcp":    chunkstore.KindTCP,
}

// Server is the HTTP boundary over the fingerprint service.
type Server struct {
	svc     *fingerprint.Service
	ingest  *ingest.Handler
	cfg     *config.Config
	metrics *metric.Registry
	logger  *slog.Logger
	router  chi.Router
	limiter *rateLimiter
}

// NewServer wires the router. A nil logger discards log output.
func NewServer(svc *fingerprint.Service, ing *ingest.Handler, cfg *config.Config, metrics *metric.Registry, logger *slog.Logger) (*Server, error) {
	if svc == nil || ing == nil || cfg == nil || metrics == nil {
		return nil, errors.WrapInvalid(nil, "Server", "NewServer", "service, ingest handler, config and metrics are required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		svc:     svc,
		ingest:  ing,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		limiter: newRateLimiter(ingestRateLimit, ingestRateWindow),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.HTTP.AllowedOrigins))
	r.Use(metricsMiddleware(s.metrics.Metrics))

	r.Get("/health", s.handleHealth)
	r.Get("/ping", s.handlePing)
	r.Get("/api/version", s.handleVersion)
	r.Get("/api/echo", s.handleEcho)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/api/edge/ingest", s.handleIngest("edge", s.cfg.Ingest.MaxBytes.Edge, s.ingest.Edge))
		r.Post("/api/tls/ingest", s.handleIngest("tls", s.cfg.Ingest.MaxBytes.TLS, s.ingest.TLS))
		r.Post("/api/dns/ingest", s.handleIngest("dns", s.cfg.Ingest.MaxBytes.DNS, s.ingest.DNS))
		r.Post("/api/webrtc/ingest", s.handleIngest("webrtc", s.cfg.Ingest.MaxBytes.WebRTC, s.ingest.WebRTC))
		r.Post("/api/tcp/ingest", s.handleIngest("tcp", s.cfg.Ingest.MaxBytes.TCP, s.ingest.TCP))
	})

	r.Route("/api/fp", func(r chi.Router) {
		r.Post("/collect", s.handleCollect)
		r.Get("/compare", s.handleCompare)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Get("/session/{sid}", s.handleSession)
		r.Get("/debug/chunks/{sid}", s.handleDebugChunks)
		r.Get("/debug/stats", s.handleDebugStats)
		r.Get("/{id:[A-Za-z0-9_-]{6,64}}", s.handleGet)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "path": r.URL.Path})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UnixMilli()})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.VersionInfo())
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	order, hash, sample := HeaderOrderAndHash(r.Header)
	query := map[string]string{}
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			query[key] = vals[0]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"httpVersion":     r.Proto,
		"headerOrderHash": hash,
		"headerOrder":     order,
		"headerSample":    sample,
		"query":           query,
	})
}

type ingestFn func(ctx context.Context, corrID string, body []byte) (*ingest.Receipt, error)

func (s *Server) handleIngest(kind string, maxBytes int64, accept ingestFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.readBody(w, r, maxBytes)
		if !ok {
			return
		}

		corrID := extractCorrID(r, body)
		s.logger.Debug("ingest request", "kind", kind, "corrId", corrID, "bytes", len(body))

		receipt, err := accept(r.Context(), corrID, body)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.metrics.Metrics.RecordChunkAdded(kind)
		writeJSON(w, http.StatusOK, receipt)
	}
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, s.cfg.HTTP.MaxBodyBytes)
	if !ok {
		return
	}

	// The client may post the payload bare or wrapped; the wrapped form
	// can carry trusted enrichments from an upstream proxy.
	var wrapper struct {
		Payload json.RawMessage   `json:"payload"`
		GeoSrv  *snapshot.GeoInfo `json:"geoSrv"`
		RDAP    json.RawMessage   `json:"rdap"`
	}
	_ = json.Unmarshal(body, &wrapper)

	payloadBytes := body
	if len(wrapper.Payload) > 0 && string(wrapper.Payload) != "null" {
		payloadBytes = wrapper.Payload
	}

	var payload snapshot.RawPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "payload required"})
		return
	}

	waited := map[string]any{"ok": false, "ready": []chunkstore.Kind{}}
	if sid := sessionID(&payload); sid != "" {
		kinds := s.waitKinds(r)
		timeout := s.waitTimeout(r)
		if len(kinds) > 0 && timeout > 0 {
			ready, allReady := s.svc.WaitChunks(r.Context(), sid, kinds, timeout)
			waited = map[string]any{"ok": allReady, "ready": ready}
		}
	}

	order, hash, sample := HeaderOrderAndHash(r.Header)
	res, err := s.svc.Save(r.Context(), fingerprint.SubmitInput{
		IP:         clientIP(r),
		UA:         r.Header.Get("User-Agent"),
		Origin:     r.Header.Get("Origin"),
		Payload:    &payload,
		HeadersSrv: &snapshot.HeaderInfo{Order: order, Hash: hash, Sample: sample},
		GeoSrv:     wrapper.GeoSrv,
		RDAP:       wrapper.RDAP,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.metrics.Metrics.RecordSnapshotSaved()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"id":           res.ID,
		"hash":         res.ContentHash,
		"ts":           res.TS,
		"networkFound": res.NetworkFound,
		"waited":       waited,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "a and b required"})
		return
	}
	cmp, err := s.svc.Compare(a, b)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.Metrics.RecordCompare()
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := snapstore.Query{
		Band: q.Get("band"),
		UA:   q.Get("ua"),
		Page: q.Get("page"),
	}
	if v, err := strconv.ParseInt(q.Get("from"), 10, 64); err == nil {
		query.From = v
	}
	if v, err := strconv.ParseInt(q.Get("to"), 10, 64); err == nil {
		query.To = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		query.Limit = v
	}
	writeJSON(w, http.StatusOK, s.svc.Search(query))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Session(chi.URLParam(r, "sid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDebugChunks(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	parts, err := s.svc.Chunks(r.Context(), sid)
	if err != nil && !errors.IsNotFound(err) {
		s.writeError(w, err)
		return
	}
	var out any
	if parts != nil {
		out = parts
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "corrId": sid, "parts": out})
}

func (s *Server) handleDebugStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.ChunkStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.Metrics.SetBufferEntries(stats.Alive)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "chunks": stats})
}

// readBody reads a size-capped request body, answering 413 on
// overflow.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "error": "payload too large"})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		}
		return nil, false
	}
	return body, true
}

// extractCorrID resolves the correlation id from the body, the
// x-fc-corr header or the fc_corr cookie, in that order.
func extractCorrID(r *http.Request, body []byte) string {
	var probe struct {
		CorrID    string `json:"corrId"`
		SID       string `json:"sid"`
		SessionID string `json:"sessionId"`
		Meta      *struct {
			SessionID string `json:"sessionId"`
		} `json:"meta"`
	}
	_ = json.Unmarshal(body, &probe)

	switch {
	case probe.CorrID != "":
		return probe.CorrID
	case probe.SID != "":
		return probe.SID
	case probe.SessionID != "":
		return probe.SessionID
	case probe.Meta != nil && probe.Meta.SessionID != "":
		return probe.Meta.SessionID
	}
	if v := r.Header.Get("x-fc-corr"); v != "" {
		return v
	}
	if c, err := r.Cookie("fc_corr"); err == nil {
		return c.Value
	}
	return ""
}

func sessionID(p *snapshot.RawPayload) string {
	if p == nil || p.Meta == nil {
		return ""
	}
	return p.Meta.SessionID
}

func (s *Server) waitKinds(r *http.Request) []chunkstore.Kind {
	raw := r.URL.Query().Get("waitFor")
	var names []string
	if raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				names = append(names, k)
			}
		}
	} else {
		names = s.cfg.Collect.WaitKinds()
	}

	var kinds []chunkstore.Kind
	for _, name := range names {
		if k, ok := knownKinds[name]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s *Server) waitTimeout(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("timeoutMs"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(s.cfg.Collect.TimeoutMs) * time.Millisecond
}

// writeError maps classified errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsInvalid(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsTransient(err):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
