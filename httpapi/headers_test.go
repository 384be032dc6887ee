package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderOrderAndHashDeterministic(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("User-Agent", "curl/8.0")

	order1, hash1, _ := HeaderOrderAndHash(h)
	order2, hash2, _ := HeaderOrderAndHash(h)

	assert.Equal(t, order1, order2)
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 32)
	assert.NotEmpty(t, order1)
}

func TestHeaderHashChangesWithSet(t *testing.T) {
	a := http.Header{}
	a.Set("Accept", "*/*")

	b := http.Header{}
	b.Set("Accept", "*/*")
	b.Set("Accept-Language", "en-US")

	_, hashA, _ := HeaderOrderAndHash(a)
	_, hashB, _ := HeaderOrderAndHash(b)
	assert.NotEqual(t, hashA, hashB)
}

func TestSampleSkipsSensitiveHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Cookie", "session=abc")
	h.Set("Authorization", "Bearer tok")
	h.Set("X-Forwarded-For", "203.0.113.9")
	h.Set("Accept", "*/*")

	order, _, sample := HeaderOrderAndHash(h)

	// Sensitive names stay in the order but never in the sample.
	assert.Contains(t, order, "Cookie")
	require.Len(t, sample, 1)
	assert.Equal(t, "Accept", sample[0][0])
}

func TestSampleMasksIPs(t *testing.T) {
	h := http.Header{}
	h.Set("X-Real-Client", "203.0.113.9")
	h.Set("Via", "proxy 2001:db8::1")

	_, _, sample := HeaderOrderAndHash(h)
	for _, pair := range sample {
		assert.NotContains(t, pair[1], "203.0.113.9")
		assert.NotContains(t, pair[1], "2001:db8::1")
	}
}

func TestMaskIPs(t *testing.T) {
	assert.Equal(t, "ip=x.x.x.x", maskIPs("ip=203.0.113.9"))
	assert.NotContains(t, maskIPs("fe80::1 via relay"), "fe80::1")
	assert.Equal(t, "plain value", maskIPs("plain value"))
}
