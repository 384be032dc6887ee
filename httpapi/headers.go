package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

const headerSampleLimit = 20

// Headers whose values never leave the server.
var sensitiveHeaders = map[string]struct{}{
	"cookie":              {},
	"authorization":       {},
	"proxy-authorization": {},
	"x-forwarded-for":     {},
	"cf-connecting-ip":    {},
	"true-client-ip":      {},
}

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ipv6Pattern = regexp.MustCompile(`(?i)\b[a-f0-9]*:[a-f0-9:]+\b`)
)

// maskIPs blanks v4 and v6 addresses in a header value.
func maskIPs(s string) string {
	s = ipv4Pattern.ReplaceAllString(s, "x.x.x.x")
	return ipv6Pattern.ReplaceAllString(s, "v6::mask")
}

// HeaderOrderAndHash derives the header-shape signal from a request.
// net/http does not expose wire order, so the order is the canonical
// header set sorted by name with one entry per value: stable for equal
// header sets, which is what the hash needs. The sample skips
// sensitive headers and masks IP addresses in values.
func HeaderOrderAndHash(h http.Header) (order []string, hash string, sample [][2]string) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	order = []string{}
	sample = [][2]string{}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, value := range h[name] {
			order = append(order, name)
			if _, skip := sensitiveHeaders[lower]; skip || len(sample) >= headerSampleLimit {
				continue
			}
			if len(value) > 256 {
				value = value[:256]
			}
			sample = append(sample, [2]string{name, maskIPs(value)})
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(order, "\n")))
	hash = hex.EncodeToString(sum[:])[:32]
	return order, hash, sample
}
