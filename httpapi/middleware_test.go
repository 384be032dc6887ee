package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := newRateLimiter(3, 50*time.Millisecond)

	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))

	// Another IP has its own window.
	assert.True(t, rl.allow("2.2.2.2"))

	// Window rollover resets the count.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.allow("1.1.1.1"))
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		`https://fingercloak.com`:     "https://fingercloak.com",
		`"https://fingercloak.com/"`:  "https://fingercloak.com",
		`'HTTPS://Fingercloak.COM//'`: "https://fingercloak.com",
		` https://fingercloak.com/ `:  "https://fingercloak.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeOrigin(in), in)
	}
}
