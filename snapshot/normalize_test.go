package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestNormalizeEmptyPayload(t *testing.T) {
	n := Normalize(nil, "Mozilla/5.0 test")

	assert.Equal(t, "Mozilla/5.0 test", n.Env.UA)
	assert.False(t, n.WebGL.Supported)
	assert.Equal(t, 44100, n.Audio.SampleRate)
	assert.Equal(t, "unknown", n.Derived.Consistency.UAvsWebGLRenderer)
	assert.NotEmpty(t, n.Meta.CollectedAt)
	assert.NotZero(t, n.Derived.Time.ServerReceived)
}

func TestNormalizeQuantizesNumbers(t *testing.T) {
	raw := &RawPayload{
		Env:    &RawEnv{HardwareConcurrency: f(7.6), DeviceMemory: f(8)},
		Screen: &RawScreen{DPR: f(1.6666667), ColorDepth: f(24)},
	}
	n := Normalize(raw, "")

	require.NotNil(t, n.Env.HardwareConcurrency)
	assert.Equal(t, 8, *n.Env.HardwareConcurrency)
	require.NotNil(t, n.Screen.DPR)
	assert.InDelta(t, 1.67, *n.Screen.DPR, 0.0001)
	require.NotNil(t, n.Screen.ColorDepth)
	assert.Equal(t, 24, *n.Screen.ColorDepth)
}

func TestNormalizeCapsLanguages(t *testing.T) {
	langs := make([]string, 30)
	for i := range langs {
		langs[i] = "l" + string(rune('a'+i))
	}
	n := Normalize(&RawPayload{Env: &RawEnv{Languages: langs}}, "")
	assert.Len(t, n.Env.Languages, 16)
}

func TestNormalizeRTCTypesSortedUnique(t *testing.T) {
	raw := &RawPayload{RTC: &RawRTC{Types: []string{"srflx", "host", "srflx", "", "relay"}}}
	n := Normalize(raw, "")

	assert.True(t, n.RTC.Supported)
	assert.Equal(t, []string{"host", "relay", "srflx"}, n.RTC.Types)
}

func TestNormalizeCanvasAudioFallbacks(t *testing.T) {
	raw := &RawPayload{
		Pro: &RawPro{
			CanvasGuard: &struct {
				HashA string `json:"hashA,omitempty"`
			}{HashA: "cg-hash"},
			AudioGuard: &struct {
				OfflineHashes []string `json:"offlineHashes,omitempty"`
			}{OfflineHashes: []string{"ag-hash"}},
		},
	}
	n := Normalize(raw, "")

	assert.Equal(t, "cg-hash", n.Canvas.Hash)
	assert.Equal(t, "ag-hash", n.Audio.Hash)
}

func TestNormalizePrimaryHashesWinOverFallbacks(t *testing.T) {
	raw := &RawPayload{
		Canvas: &RawCanvas{Hash: "primary-canvas"},
		Randomization: &RawRandomization{Audio: &struct {
			Hashes []string `json:"hashes,omitempty"`
		}{Hashes: []string{"primary-audio"}}},
		Pro: &RawPro{
			CanvasGuard: &struct {
				HashA string `json:"hashA,omitempty"`
			}{HashA: "fallback"},
		},
	}
	n := Normalize(raw, "")

	assert.Equal(t, "primary-canvas", n.Canvas.Hash)
	assert.Equal(t, "primary-audio", n.Audio.Hash)
}

func TestNormalizeWebGPUFeaturesHashOrderIndependent(t *testing.T) {
	mk := func(features []string) *RawPayload {
		return &RawPayload{WebGPU: &RawWebGPU{
			Supported: true,
			Adapter: &struct {
				Features []string `json:"features,omitempty"`
				Limits   *struct {
					MaxTextureDimension2D *float64 `json:"maxTextureDimension2D,omitempty"`
					MaxColorAttachments   *float64 `json:"maxColorAttachments,omitempty"`
					MaxBindGroups         *float64 `json:"maxBindGroups,omitempty"`
					MaxVertexAttributes   *float64 `json:"maxVertexAttributes,omitempty"`
					MaxBufferSize         *float64 `json:"maxBufferSize,omitempty"`
				} `json:"limits,omitempty"`
			}{Features: features},
		}}
	}

	a := Normalize(mk([]string{"depth-clip-control", "bgra8unorm-storage"}), "")
	b := Normalize(mk([]string{"bgra8unorm-storage", "depth-clip-control"}), "")

	assert.NotEmpty(t, a.WebGPU.FeaturesHash)
	assert.Equal(t, a.WebGPU.FeaturesHash, b.WebGPU.FeaturesHash)
}

func TestNormalizeConsistencyFlags(t *testing.T) {
	raw := &RawPayload{
		Env:   &RawEnv{UA: "Mozilla/5.0 Chrome/120", Timezone: "Europe/Berlin"},
		WebGL: &RawWebGL{Supported: true, Renderer: "ANGLE (NVIDIA GeForce)"},
		Intl:  &RawIntl{Locale: "de-DE"},
	}
	n := Normalize(raw, "")

	assert.Equal(t, "ok", n.Derived.Consistency.UAvsWebGLRenderer)
	// de-DE against Europe/Berlin: the tz name has no "de" substring.
	assert.Equal(t, "mismatch", n.Derived.Consistency.IntlVsTz)
}

func TestNormalizeUAvsWebGLSuspect(t *testing.T) {
	raw := &RawPayload{
		Env:   &RawEnv{UA: "Mozilla/5.0 Chrome/120"},
		WebGL: &RawWebGL{Supported: true, Renderer: "Apple GPU"},
	}
	n := Normalize(raw, "")
	assert.Equal(t, "suspect", n.Derived.Consistency.UAvsWebGLRenderer)
}

func TestNormalizeScoresAndBand(t *testing.T) {
	rich := &RawPayload{
		Env: &RawEnv{
			UA: "x", Languages: []string{"en"}, Timezone: "UTC",
			HardwareConcurrency: f(8), DeviceMemory: f(8), CookiesEnabled: true,
		},
		WebGL:  &RawWebGL{Supported: true},
		WebGPU: &RawWebGPU{Supported: true},
		Timers: &RawTimers{
			PerformanceNow: &struct {
				MinDeltaNs *float64 `json:"minDeltaNs,omitempty"`
				P95DeltaNs *float64 `json:"p95DeltaNs,omitempty"`
			}{P95DeltaNs: f(500)},
			RAF: &struct {
				MeanDeltaMs *float64 `json:"meanDeltaMs,omitempty"`
				P95DeltaMs  *float64 `json:"p95DeltaMs,omitempty"`
			}{P95DeltaMs: f(16.7)},
		},
		Intl: &RawIntl{TimeZone: "UTC"},
	}
	n := Normalize(rich, "")

	assert.Equal(t, 100, n.Derived.Scores.Buckets.HardwareRealism)
	assert.GreaterOrEqual(t, n.Derived.Scores.Total, 80)
	assert.Equal(t, BandHigh, n.Derived.Scores.Band)

	poor := Normalize(&RawPayload{}, "")
	assert.Equal(t, BandLow, poor.Derived.Scores.Band)
	assert.Less(t, poor.Derived.Scores.Total, 60)
}

func TestNormalizeTimeSkew(t *testing.T) {
	when := time.Now().Add(-2 * time.Second).UTC().Format(time.RFC3339)
	n := Normalize(&RawPayload{Meta: &RawMeta{When: when}}, "")

	require.NotNil(t, n.Derived.Time.SkewMs)
	assert.Greater(t, *n.Derived.Time.SkewMs, int64(1000))
	assert.Less(t, *n.Derived.Time.SkewMs, int64(10000))
}

func TestNormalizeWebCodecsSorted(t *testing.T) {
	raw := &RawPayload{WebCodecs: &RawWebCodecs{
		Supported: true,
		Video: map[string]json.RawMessage{
			"vp9": json.RawMessage(`{}`), "avc1": json.RawMessage(`{}`), "av01": json.RawMessage(`{}`),
		},
	}}
	n := Normalize(raw, "")

	assert.Equal(t, []string{"av01", "avc1", "vp9"}, n.WebCodecs.Video)
}

func TestNormalizeFontsPresentCount(t *testing.T) {
	raw := &RawPayload{Pro3: &RawPro3{
		FontsDeep: &struct {
			Present []string `json:"present,omitempty"`
		}{Present: []string{"Arial", "Helvetica"}},
	}}
	n := Normalize(raw, "")

	require.NotNil(t, n.Fonts.PresentCount)
	assert.Equal(t, 2, *n.Fonts.PresentCount)
}

func TestNormalizeTouchSoftPresence(t *testing.T) {
	n := Normalize(&RawPayload{Screen: &RawScreen{TouchPoints: f(5)}}, "")
	assert.True(t, n.Derived.TouchSoft.Present)

	n = Normalize(&RawPayload{}, "")
	assert.False(t, n.Derived.TouchSoft.Present)
	assert.Equal(t, "absence-not-negative", n.Derived.TouchSoft.Rule)
}
