package testutil

import (
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

// Float returns a pointer to v, for optional numeric payload fields.
func Float(v float64) *float64 {
	return &v
}

// SampleRawPayload builds a realistic desktop Chrome submission with
// graphics, canvas, audio and intl sections populated.
func SampleRawPayload(sessionID string) *snapshot.RawPayload {
	p := &snapshot.RawPayload{
		Meta: &snapshot.RawMeta{
			When:      "2025-01-01T00:00:00.000Z",
			Page:      "/lab",
			SessionID: sessionID,
		},
		Env: &snapshot.RawEnv{
			UA:                  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			Platform:            "Win32",
			Languages:           []string{"en-US", "en"},
			HardwareConcurrency: Float(8),
			DeviceMemory:        Float(16),
		},
		Screen: &snapshot.RawScreen{
			Screen:      "2560x1440",
			ColorDepth:  Float(24),
			DPR:         Float(1.25),
			TouchPoints: Float(0),
		},
		WebGL: &snapshot.RawWebGL{
			Supported:  true,
			Vendor:     "Google Inc. (NVIDIA)",
			Renderer:   "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
			MaxTexture: Float(16384),
		},
		Canvas: &snapshot.RawCanvas{Hash: "9f2c4e11ab03d6f0", W: Float(300), H: Float(150)},
		Intl: &snapshot.RawIntl{
			Locale:   "en-US",
			TimeZone: "America/Denver",
		},
	}
	p.Randomization = &snapshot.RawRandomization{}
	p.Randomization.Audio = &struct {
		Hashes []string `json:"hashes,omitempty"`
	}{Hashes: []string{"77ab120c"}}
	return p
}
