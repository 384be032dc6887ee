package fingerprint

import (
	"reflect"
	"strings"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/identity"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

const maxFactors = 6

// SnapshotRef identifies one side of a comparison.
type SnapshotRef struct {
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

// Factor is one human-readable pro or con similarity signal.
type Factor struct {
	Kind string `json:"kind"` // "pro" or "con"
	Msg  string `json:"msg"`
}

// FieldDiff is one field compared across both snapshots.
type FieldDiff struct {
	A    any  `json:"a"`
	B    any  `json:"b"`
	Same bool `json:"same"`
}

// Comparison is the full result of comparing two saved snapshots.
type Comparison struct {
	A                  SnapshotRef                     `json:"a"`
	B                  SnapshotRef                     `json:"b"`
	SameStable         bool                            `json:"sameStable"`
	ContentHashHamming int                             `json:"contentHashHamming"`
	CompatScore        int                             `json:"compatScore"`
	TopFactors         []Factor                        `json:"topFactors"`
	Diff               map[string]map[string]FieldDiff `json:"diff"`
}

// Compare scores two saved snapshots 0..100 and explains the result.
// Returns NotFound when either id is unknown.
func (s *Service) Compare(aID, bID string) (*Comparison, error) {
	a, err := s.snaps.GetByID(aID)
	if err != nil {
		return nil, err
	}
	b, err := s.snaps.GetByID(bID)
	if err != nil {
		return nil, err
	}

	sameStable := a.StableID == b.StableID
	dist, err := identity.HammingDistance(a.ContentHash, b.ContentHash)
	if err != nil {
		return nil, errors.Wrap(err, "Service", "Compare", "content hash distance")
	}

	score := 50
	if sameStable {
		score += 30
	}
	penalty := (dist + 2) / 4 // round(dist/4)
	if penalty > 30 {
		penalty = 30
	}
	score -= penalty
	if uaProduct(a.Env.UA) != "" && uaProduct(a.Env.UA) == uaProduct(b.Env.UA) {
		score += 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Comparison{
		A:                  SnapshotRef{ID: a.ID, TS: a.TS},
		B:                  SnapshotRef{ID: b.ID, TS: b.TS},
		SameStable:         sameStable,
		ContentHashHamming: dist,
		CompatScore:        score,
		TopFactors:         explain(a, b),
		Diff:               diffSnapshots(a, b),
	}, nil
}

// uaProduct is the leading product token of a user agent.
func uaProduct(ua string) string {
	if ua == "" {
		return ""
	}
	return strings.SplitN(ua, "/", 2)[0]
}

// explain lists up to six pro/con factors, strongest first.
func explain(a, b *snapshot.Snapshot) []Factor {
	var out []Factor

	if a.StableID == b.StableID {
		out = append(out, Factor{Kind: "pro", Msg: "stable id matches"})
	}
	if a.Env.UA != "" && a.Env.UA == b.Env.UA {
		out = append(out, Factor{Kind: "pro", Msg: "user agent matches"})
	}
	if (a.WebGL.Renderer != "" && a.WebGL.Renderer == b.WebGL.Renderer) ||
		(a.WebGL2.Renderer != "" && a.WebGL2.Renderer == b.WebGL2.Renderer) {
		out = append(out, Factor{Kind: "pro", Msg: "webgl renderer matches"})
	}
	if a.Canvas.Hash != "" && a.Canvas.Hash == b.Canvas.Hash {
		out = append(out, Factor{Kind: "pro", Msg: "canvas hash matches"})
	}
	if a.Audio.Hash != "" && a.Audio.Hash == b.Audio.Hash {
		out = append(out, Factor{Kind: "pro", Msg: "audio hash matches"})
	}

	if !equalValues(a.Screen.DPR, b.Screen.DPR) {
		out = append(out, Factor{Kind: "con", Msg: "different device pixel ratio"})
	}
	if a.Intl.TimeZone != b.Intl.TimeZone {
		out = append(out, Factor{Kind: "con", Msg: "different time zone"})
	}

	if len(out) > maxFactors {
		out = out[:maxFactors]
	}
	return out
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(deref(a), deref(b))
}

// deref flattens pointers so nil pointers compare as null values.
func deref(v any) any {
	switch x := v.(type) {
	case *int:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

// diffSnapshots builds the grouped per-field diff.
func diffSnapshots(a, b *snapshot.Snapshot) map[string]map[string]FieldDiff {
	group := func(fields map[string][2]any) map[string]FieldDiff {
		g := make(map[string]FieldDiff, len(fields))
		for name, pair := range fields {
			av, bv := deref(pair[0]), deref(pair[1])
			g[name] = FieldDiff{A: av, B: bv, Same: reflect.DeepEqual(av, bv)}
		}
		return g
	}

	return map[string]map[string]FieldDiff{
		"env": group(map[string][2]any{
			"ua":                  {a.Env.UA, b.Env.UA},
			"languages":           {a.Env.Languages, b.Env.Languages},
			"platform":            {a.Env.Platform, b.Env.Platform},
			"hardwareConcurrency": {a.Env.HardwareConcurrency, b.Env.HardwareConcurrency},
			"deviceMemory":        {a.Env.DeviceMemory, b.Env.DeviceMemory},
		}),
		"screen": group(map[string][2]any{
			"dpr":         {a.Screen.DPR, b.Screen.DPR},
			"colorDepth":  {a.Screen.ColorDepth, b.Screen.ColorDepth},
			"touchPoints": {a.Screen.TouchPoints, b.Screen.TouchPoints},
		}),
		"webgl": group(map[string][2]any{
			"vendor":     {a.WebGL.Vendor, b.WebGL.Vendor},
			"renderer":   {a.WebGL.Renderer, b.WebGL.Renderer},
			"maxTexture": {a.WebGL.MaxTexture, b.WebGL.MaxTexture},
		}),
		"webgl2": group(map[string][2]any{
			"vendor":     {a.WebGL2.Vendor, b.WebGL2.Vendor},
			"renderer":   {a.WebGL2.Renderer, b.WebGL2.Renderer},
			"maxTexture": {a.WebGL2.MaxTexture, b.WebGL2.MaxTexture},
		}),
		"webgpu": group(map[string][2]any{
			"supported": {a.WebGPU.Supported, b.WebGPU.Supported},
		}),
		"intl": group(map[string][2]any{
			"locale":   {a.Intl.Locale, b.Intl.Locale},
			"timeZone": {a.Intl.TimeZone, b.Intl.TimeZone},
		}),
		"canvas": group(map[string][2]any{
			"hash": {a.Canvas.Hash, b.Canvas.Hash},
		}),
		"audio": group(map[string][2]any{
			"hash": {a.Audio.Hash, b.Audio.Hash},
		}),
	}
}
