package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/bits"

	"github.com/zeebo/blake3"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

const maxUALen = 256

func digest(v any) string {
	sum := blake3.Sum256([]byte(canonicalize(v)))
	return hex.EncodeToString(sum[:])
}

func capString(s string) string {
	if len(s) > maxUALen {
		return s[:maxUALen]
	}
	return s
}

// StableID hashes only fields expected constant across page reloads on
// the same device/browser install: no network, no timing, no behavior.
func StableID(n *snapshot.Normalized) string {
	graphics := preferredGraphics(n)

	var webgpu any
	if n.WebGPU.Supported {
		var maxBindGroups *int
		if n.WebGPU.Limits != nil {
			maxBindGroups = n.WebGPU.Limits.MaxBindGroups
		}
		webgpu = map[string]any{
			"featuresHash":  n.WebGPU.FeaturesHash,
			"maxBindGroups": maxBindGroups,
		}
	}

	pick := map[string]any{
		"ua":  capString(n.Env.UA),
		"hc":  n.Env.HardwareConcurrency,
		"dm":  n.Env.DeviceMemory,
		"dpr": n.Screen.DPR,
		"webgl": map[string]any{
			"vendor":   graphics.vendor,
			"renderer": graphics.renderer,
			"maxTex":   graphics.maxTexture,
		},
		"webgpu": webgpu,
		"codecs": map[string]any{
			"wcVideo": n.WebCodecs.Video,
			"wcAudio": n.WebCodecs.Audio,
		},
		"canvas": map[string]any{"hash": n.Canvas.Hash},
		"audio":  map[string]any{"hash": n.Audio.Hash},
		"fonts":  map[string]any{"presentCount": n.Fonts.PresentCount},
	}

	return digest(pick)
}

// ContentHash hashes the broader identity core, excluding timestamps,
// IP-derived data and behavior aggregates.
func ContentHash(n *snapshot.Normalized) string {
	graphics := preferredGraphics(n)

	var webgpu any = "no"
	if n.WebGPU.Supported {
		webgpu = n.WebGPU.FeaturesHash
	}

	core := map[string]any{
		"env": map[string]any{
			"ua":        capString(n.Env.UA),
			"languages": n.Env.Languages,
			"platform":  n.Env.Platform,
		},
		"screen": map[string]any{
			"colorDepth": n.Screen.ColorDepth,
			"dpr":        n.Screen.DPR,
		},
		"webgl": map[string]any{
			"vendor":     graphics.vendor,
			"renderer":   graphics.renderer,
			"maxTexture": graphics.maxTexture,
		},
		"webgpu": webgpu,
		"webcodecs": map[string]any{
			"video": n.WebCodecs.Video,
			"audio": n.WebCodecs.Audio,
		},
		"intl": map[string]any{
			"locale":   n.Intl.Locale,
			"timeZone": n.Intl.TimeZone,
		},
		"canvas": n.Canvas.Hash,
		"audio":  n.Audio.Hash,
	}

	return digest(core)
}

type graphicsPick struct {
	vendor     string
	renderer   string
	maxTexture *int
}

// preferredGraphics collapses WebGL and WebGL2 into one source, WebGL
// first when it reported values.
func preferredGraphics(n *snapshot.Normalized) graphicsPick {
	g := graphicsPick{
		vendor:     n.WebGL.Vendor,
		renderer:   n.WebGL.Renderer,
		maxTexture: n.WebGL.MaxTexture,
	}
	if g.vendor == "" {
		g.vendor = n.WebGL2.Vendor
	}
	if g.renderer == "" {
		g.renderer = n.WebGL2.Renderer
	}
	if g.maxTexture == nil {
		g.maxTexture = n.WebGL2.MaxTexture
	}
	return g
}

// HammingDistance counts differing bits between two hex digests over the
// shorter common prefix, plus eight bits per byte of length difference.
// Symmetric; zero for identical inputs.
func HammingDistance(a, b string) (int, error) {
	bufA, err := hex.DecodeString(a)
	if err != nil {
		return 0, errors.WrapInvalid(err, "identity", "HammingDistance", "decode first digest")
	}
	bufB, err := hex.DecodeString(b)
	if err != nil {
		return 0, errors.WrapInvalid(err, "identity", "HammingDistance", "decode second digest")
	}

	n := len(bufA)
	if len(bufB) < n {
		n = len(bufB)
	}

	dist := 0
	for i := 0; i < n; i++ {
		dist += bits.OnesCount8(bufA[i] ^ bufB[i])
	}

	diff := len(bufA) - len(bufB)
	if diff < 0 {
		diff = -diff
	}
	return dist + 8*diff, nil
}

// HashIP returns a salted HMAC-SHA256 digest of an IP, truncated to 32
// hex chars. The raw IP is never stored.
func HashIP(ip, salt string) string {
	if ip == "" {
		ip = "unknown"
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}
