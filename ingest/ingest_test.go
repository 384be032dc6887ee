package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/kvstore"
)

func newTestHandler(t *testing.T, edgeSecret, tlsSecret string) (*Handler, *chunkstore.Store) {
	t.Helper()

	backend := kvstore.NewMemory(time.Minute, nil)
	chunks, err := chunkstore.New(backend, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = backend.Close(ctx)
	})

	h, err := NewHandler(chunks, edgeSecret, tlsSecret, nil)
	require.NoError(t, err)
	return h, chunks
}

func sign(t *testing.T, secret string, fields map[string]any) []byte {
	t.Helper()

	base, err := json.Marshal(fields)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(base)
	fields["_signature"] = hex.EncodeToString(mac.Sum(nil))

	body, err := json.Marshal(fields)
	require.NoError(t, err)
	return body
}

func storedChunk(t *testing.T, chunks *chunkstore.Store, corrID string, kind chunkstore.Kind) map[string]any {
	t.Helper()

	parts, err := chunks.Peek(context.Background(), corrID)
	require.NoError(t, err)
	require.Contains(t, parts, kind)

	var m map[string]any
	require.NoError(t, json.Unmarshal(parts[kind], &m))
	return m
}

func TestEdgeStoresTypedChunk(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{
		"ip": "203.0.113.9",
		"httpVersion": "2.0",
		"alpn": "h2",
		"tls": {"version": "TLSv1.3", "cipher": "TLS_AES_128_GCM_SHA256"},
		"ja3": "771,4865-4866",
		"ja4": "t13d1516h2",
		"h2": {"settings": {"headerTableSize": 65536}, "windowUpdate": {"sizeIncrement": 15663105}, "prioritySig": "weight=256"},
		"geo": {"asn": "AS13335", "country": "DE"},
		"headers": {"order": ["accept", "user-agent"], "hash": "abc", "sample": [["accept", "*/*"]]}
	}`)

	rec, err := h.Edge(context.Background(), "corr-1", body)
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, "corr-1", rec.CorrID)

	m := storedChunk(t, chunks, "corr-1", chunkstore.KindEdge)
	assert.Equal(t, "corr-1", m["corrId"])
	assert.Equal(t, "203.0.113.9", m["ip"])
	assert.Equal(t, "771,4865-4866", m["ja3"])
	assert.NotZero(t, m["observedAt"])

	tls := m["tls"].(map[string]any)
	assert.Equal(t, "TLSv1.3", tls["version"])

	headers := m["headers"].(map[string]any)
	assert.Equal(t, []any{"accept", "user-agent"}, headers["order"])
}

func TestEdgeClampsOversizedFields(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	long := strings.Repeat("x", 1000)
	order := make([]string, 500)
	for i := range order {
		order[i] = fmt.Sprintf("h-%d", i)
	}
	body, err := json.Marshal(map[string]any{
		"ja3":     long,
		"headers": map[string]any{"order": order},
	})
	require.NoError(t, err)

	_, err = h.Edge(context.Background(), "corr-2", body)
	require.NoError(t, err)

	m := storedChunk(t, chunks, "corr-2", chunkstore.KindEdge)
	assert.Len(t, m["ja3"], 128)
	assert.Len(t, m["headers"].(map[string]any)["order"], 256)
}

func TestEdgeSignatureRequired(t *testing.T) {
	h, _ := newTestHandler(t, "edge-secret", "")
	ctx := context.Background()

	// Unsigned body is rejected.
	_, err := h.Edge(ctx, "corr-3", []byte(`{"ja3":"771"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Wrong signature is rejected.
	_, err = h.Edge(ctx, "corr-3", []byte(`{"ja3":"771","_signature":"deadbeef"}`))
	require.Error(t, err)

	// Correctly signed body passes.
	body := sign(t, "edge-secret", map[string]any{"ja3": "771"})
	rec, err := h.Edge(ctx, "corr-3", body)
	require.NoError(t, err)
	assert.True(t, rec.OK)
}

func TestTLSOmitsEdgeOnlyFields(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{"ip":"203.0.113.9","ja4":"t13d","geo":{"country":"DE"},"headers":{"order":["accept"]}}`)
	_, err := h.TLS(context.Background(), "corr-4", body)
	require.NoError(t, err)

	m := storedChunk(t, chunks, "corr-4", chunkstore.KindTLS)
	assert.Equal(t, "t13d", m["ja4"])
	assert.NotContains(t, m, "ip")
	assert.NotContains(t, m, "geo")
	assert.NotContains(t, m, "headers")
}

func TestTLSSignedWithOwnSecret(t *testing.T) {
	h, _ := newTestHandler(t, "edge-secret", "tls-secret")
	ctx := context.Background()

	body := sign(t, "tls-secret", map[string]any{"ja3": "771"})
	_, err := h.TLS(ctx, "corr-5", body)
	require.NoError(t, err)

	// Edge secret does not sign TLS submissions.
	body = sign(t, "edge-secret", map[string]any{"ja3": "771"})
	_, err = h.TLS(ctx, "corr-5", body)
	require.Error(t, err)
}

func TestDNSFiltersAndDefaults(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{
		"tookMs": 420,
		"resolvers": [
			{"ip": "8.8.8.8", "asn": "AS15169"},
			{"ip": "2001:4860:4860::8888", "v": 6},
			{"asn": "no-ip-dropped"},
			{"ip": "9.9.9.9", "v": 99}
		]
	}`)

	rec, err := h.DNS(context.Background(), "corr-6", body)
	require.NoError(t, err)
	require.NotNil(t, rec.Count)
	assert.Equal(t, 3, *rec.Count)

	m := storedChunk(t, chunks, "corr-6", chunkstore.KindDNS)
	assert.Equal(t, "authoritative-logs", m["method"])

	resolvers := m["resolvers"].([]any)
	require.Len(t, resolvers, 3)
	assert.Equal(t, float64(4), resolvers[0].(map[string]any)["v"])
	assert.Equal(t, float64(6), resolvers[1].(map[string]any)["v"])
	// Out-of-range version falls back to 4.
	assert.Equal(t, float64(4), resolvers[2].(map[string]any)["v"])
}

func TestWebRTCFiltersAndSummary(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{
		"stun": {"uri": "stun:stun.l.google.com:19302", "ok": true},
		"candidates": [
			{"type": "host", "ip": "192.168.1.10", "port": 52000, "protocol": "udp"},
			{"type": "srflx", "address": "203.0.113.9", "port": 52001},
			{"type": "relay", "relAddr": "198.51.100.3", "relPort": 3478},
			{"type": "host", "ip": "fe80::1"},
			{"ip": "10.0.0.1"},
			{"type": "host"}
		],
		"stats": {"gatherTimeMs": 312, "iceSuccess": true}
	}`)

	rec, err := h.WebRTC(context.Background(), "corr-7", body)
	require.NoError(t, err)
	require.NotNil(t, rec.Total)
	assert.Equal(t, 4, *rec.Total)
	require.NotNil(t, rec.Summary)
	assert.True(t, rec.Summary.Host)
	assert.True(t, rec.Summary.Srflx)
	assert.True(t, rec.Summary.Relay)
	assert.True(t, rec.Summary.V6)

	m := storedChunk(t, chunks, "corr-7", chunkstore.KindWebRTC)
	cands := m["candidates"].([]any)
	assert.Len(t, cands, 4)
	// The address field fills in when ip is absent.
	assert.Equal(t, "203.0.113.9", cands[1].(map[string]any)["ip"])
}

func TestTCPChunk(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{"mss": 1460, "ws": 7, "sack": true, "ttlSeen": 52, "hopsEst": 12, "vpnLikely": true}`)
	rec, err := h.TCP(context.Background(), "corr-8", body)
	require.NoError(t, err)
	require.NotNil(t, rec.VPNLikely)
	assert.True(t, *rec.VPNLikely)

	m := storedChunk(t, chunks, "corr-8", chunkstore.KindTCP)
	assert.Equal(t, float64(1460), m["mss"])
	assert.Equal(t, true, m["sack"])
	assert.NotZero(t, m["observedAt"])
}

func TestRejectsMalformedJSON(t *testing.T) {
	h, _ := newTestHandler(t, "", "")
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context, string, []byte) (*Receipt, error){
		"edge":   h.Edge,
		"dns":    h.DNS,
		"webrtc": h.WebRTC,
		"tls":    h.TLS,
		"tcp":    h.TCP,
	} {
		_, err := fn(ctx, "corr-9", []byte(`{broken`))
		assert.True(t, errors.IsInvalid(err), name)
	}
}

func TestOutOfRangeIntsDropped(t *testing.T) {
	h, chunks := newTestHandler(t, "", "")

	body := []byte(`{"mss": 9e15, "ws": 7}`)
	_, err := h.TCP(context.Background(), "corr-10", body)
	require.NoError(t, err)

	m := storedChunk(t, chunks, "corr-10", chunkstore.KindTCP)
	assert.NotContains(t, m, "mss")
	assert.Equal(t, float64(7), m["ws"])
}
