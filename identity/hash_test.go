package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func sampleNormalized() *snapshot.Normalized {
	return &snapshot.Normalized{
		Env: snapshot.Env{
			UA:                  "Mozilla/5.0 Chrome/120",
			Languages:           []string{"en-US", "en"},
			Platform:            "Win32",
			HardwareConcurrency: intp(8),
			DeviceMemory:        intp(8),
		},
		Screen: snapshot.Screen{DPR: floatp(1.5), ColorDepth: intp(24)},
		WebGL: snapshot.WebGL{
			Supported: true, Vendor: "Google Inc.", Renderer: "ANGLE (NVIDIA)",
			MaxTexture: intp(16384),
		},
		WebCodecs: snapshot.WebCodecs{Supported: true, Video: []string{"av01", "vp9"}, Audio: []string{"opus"}},
		Canvas:    snapshot.Canvas{Hash: "c0ffee"},
		Audio:     snapshot.Audio{Hash: "a0dio", SampleRate: 48000},
		Intl:      snapshot.Intl{Locale: "en-US", TimeZone: "America/Denver"},
	}
}

func TestStableIDDeterministic(t *testing.T) {
	a := StableID(sampleNormalized())
	b := StableID(sampleNormalized())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestStableIDArrayOrderInvariant(t *testing.T) {
	a := sampleNormalized()
	b := sampleNormalized()
	b.WebCodecs.Video = []string{"vp9", "av01"}

	assert.Equal(t, StableID(a), StableID(b))
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestStableIDIgnoresVolatileFields(t *testing.T) {
	a := sampleNormalized()
	b := sampleNormalized()
	b.Timers.RafP95Ms = floatp(16.7)
	b.Behavior.Clicks = intp(12)
	b.Derived.Time.ServerReceived = 12345

	assert.Equal(t, StableID(a), StableID(b))
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestStableIDChangesWithHardware(t *testing.T) {
	a := sampleNormalized()
	b := sampleNormalized()
	b.WebGL.Renderer = "ANGLE (AMD Radeon)"

	assert.NotEqual(t, StableID(a), StableID(b))
}

func TestContentHashSensitiveToLocale(t *testing.T) {
	a := sampleNormalized()
	b := sampleNormalized()
	b.Intl.TimeZone = "Europe/Berlin"

	assert.NotEqual(t, ContentHash(a), ContentHash(b))
	// Locale is not part of the stable id.
	assert.Equal(t, StableID(a), StableID(b))
}

func TestStableIDUACapped(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'u'
	}

	a := sampleNormalized()
	a.Env.UA = string(long)
	b := sampleNormalized()
	b.Env.UA = string(long) + "-tail-beyond-cap"

	assert.Equal(t, StableID(a), StableID(b))
}

func TestWebGL2FallbackForGraphics(t *testing.T) {
	a := sampleNormalized()
	a.WebGL = snapshot.WebGL{}
	a.WebGL2 = snapshot.WebGL2{
		Supported: true, Vendor: "Google Inc.", Renderer: "ANGLE (NVIDIA)", MaxTexture: intp(16384),
	}

	b := sampleNormalized()
	assert.Equal(t, StableID(a), StableID(b))
}

func TestHammingDistanceProperties(t *testing.T) {
	x := "deadbeef"
	d, err := HammingDistance(x, x)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	ab, err := HammingDistance("00", "01")
	require.NoError(t, err)
	ba, err := HammingDistance("01", "00")
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.Equal(t, 1, ab)

	// Each added flipped bit increases distance.
	d1, err := HammingDistance("00", "01")
	require.NoError(t, err)
	d2, err := HammingDistance("00", "03")
	require.NoError(t, err)
	d3, err := HammingDistance("00", "07")
	require.NoError(t, err)
	assert.Less(t, d1, d2)
	assert.Less(t, d2, d3)
}

func TestHammingDistanceLengthPenalty(t *testing.T) {
	d, err := HammingDistance("0000", "00")
	require.NoError(t, err)
	assert.Equal(t, 8, d)
}

func TestHammingDistanceInvalidHex(t *testing.T) {
	_, err := HammingDistance("zz", "00")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestHashIP(t *testing.T) {
	a := HashIP("203.0.113.7", "salt-1")
	assert.Len(t, a, 32)
	assert.Equal(t, a, HashIP("203.0.113.7", "salt-1"))
	assert.NotEqual(t, a, HashIP("203.0.113.7", "salt-2"))
	assert.NotEqual(t, a, HashIP("203.0.113.8", "salt-1"))
	assert.NotContains(t, a, "203.0.113.7")

	// Empty IP hashes as "unknown", never as the empty string.
	assert.Equal(t, HashIP("", "s"), HashIP("unknown", "s"))
}

func TestCanonicalizeMapKeyOrder(t *testing.T) {
	a := canonicalize(map[string]any{"b": 1, "a": 2})
	assert.Equal(t, `{"a":2,"b":1}`, a)
}

func TestCanonicalizeNilPointers(t *testing.T) {
	var ip *int
	assert.Equal(t, `{"x":null}`, canonicalize(map[string]any{"x": ip}))
}
