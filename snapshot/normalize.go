package snapshot

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	maxLanguages     = 16
	maxListLen       = 256
	maxFeatureDigest = 4096
)

func toInt(v *float64) *int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func toInt64(v *float64) *int64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	n := int64(math.Round(*v))
	return &n
}

func toFloat(v *float64, prec int) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	p := math.Pow10(prec)
	f := math.Round(*v*p) / p
	return &f
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

// sortUniq drops empty strings, dedupes and sorts.
func sortUniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func capList(in []string, max int) []string {
	if len(in) > max {
		return in[:max]
	}
	return in
}

// hashList collapses a feature list into a stable order-independent
// digest string.
func hashList(list []string) string {
	if len(list) == 0 {
		return ""
	}
	sorted := append([]string(nil), list...)
	sort.Strings(sorted)
	joined := strings.Join(sorted, "|")
	if len(joined) > maxFeatureDigest {
		joined = joined[:maxFeatureDigest]
	}
	return joined
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts a raw collector payload into the stable normalized
// structure. meta UA is the server-observed user agent, used when the
// payload does not carry its own.
func Normalize(raw *RawPayload, serverUA string) *Normalized {
	if raw == nil {
		raw = &RawPayload{}
	}

	now := time.Now()
	nowMs := now.UnixMilli()

	n := &Normalized{}

	n.Meta = Meta{CollectedAt: now.UTC().Format(time.RFC3339)}
	var clientWhen *int64
	if raw.Meta != nil {
		n.Meta.When = raw.Meta.When
		n.Meta.Page = raw.Meta.Page
		n.Meta.App = raw.Meta.App
		if raw.Meta.When != "" {
			if t, err := time.Parse(time.RFC3339, raw.Meta.When); err == nil {
				ms := t.UnixMilli()
				clientWhen = &ms
			}
		}
	}

	if raw.Env != nil {
		n.Env = Env{
			UA:                  raw.Env.UA,
			Languages:           capList(raw.Env.Languages, maxLanguages),
			Timezone:            raw.Env.Timezone,
			UTCOffset:           toInt(raw.Env.UTCOffset),
			Platform:            raw.Env.Platform,
			HardwareConcurrency: toInt(raw.Env.HardwareConcurrency),
			DeviceMemory:        toInt(raw.Env.DeviceMemory),
			CookiesEnabled:      raw.Env.CookiesEnabled,
			DNT:                 raw.Env.DoNotTrack,
		}
	}
	if n.Env.UA == "" {
		n.Env.UA = serverUA
	}

	if raw.Screen != nil {
		n.Screen = Screen{
			Screen:      raw.Screen.Screen,
			Avail:       raw.Screen.Avail,
			Inner:       raw.Screen.Inner,
			ColorDepth:  toInt(raw.Screen.ColorDepth),
			DPR:         toFloat(raw.Screen.DPR, 2),
			TouchPoints: toInt(raw.Screen.TouchPoints),
		}
	}

	if raw.Storage != nil {
		usage := raw.Storage.UsageBytes
		quota := raw.Storage.QuotaBytes
		if raw.Storage.Estimate != nil {
			usage = firstNonNil(usage, raw.Storage.Estimate.Usage)
			quota = firstNonNil(quota, raw.Storage.Estimate.Quota)
		}
		n.Storage.UsageBytes = toInt64(usage)
		n.Storage.QuotaBytes = toInt64(quota)
	}
	if raw.StoragePlus != nil {
		n.Storage.Persisted = raw.StoragePlus.Persisted
		n.Storage.Buckets = raw.StoragePlus.Buckets != nil && raw.StoragePlus.Buckets.Supported
	}

	if raw.WebGL != nil && raw.WebGL.Supported {
		n.WebGL = WebGL{
			Supported:  true,
			Vendor:     raw.WebGL.Vendor,
			Renderer:   raw.WebGL.Renderer,
			Version:    raw.WebGL.Version,
			GLSL:       raw.WebGL.GLSL,
			MaxTexture: toInt(raw.WebGL.MaxTexture),
			MaxAttribs: toInt(raw.WebGL.MaxAttribs),
			ExtCount:   len(capList(raw.WebGL.ExtensionsFirst25, maxListLen)),
		}
	}

	if raw.WebGL2 != nil && raw.WebGL2.Supported {
		n.WebGL2 = WebGL2{
			Supported:   true,
			Vendor:      raw.WebGL2.Vendor,
			Renderer:    raw.WebGL2.Renderer,
			Version:     raw.WebGL2.Version,
			GLSL:        raw.WebGL2.GLSL,
			MaxTexture:  toInt(raw.WebGL2.MaxTexture),
			MaxAttribs:  toInt(raw.WebGL2.MaxAttribs),
			DrawBufs:    toInt(raw.WebGL2.MaxDrawBuffers),
			ColorAttach: toInt(raw.WebGL2.MaxColorAttachments),
			Samples:     toInt(raw.WebGL2.Samples),
			ExtCount:    len(raw.WebGL2.Extensions),
		}
	}

	if raw.WebGPU != nil && raw.WebGPU.Supported {
		n.WebGPU.Supported = true
		if raw.WebGPU.Adapter != nil {
			n.WebGPU.FeaturesHash = hashList(raw.WebGPU.Adapter.Features)
			if lim := raw.WebGPU.Adapter.Limits; lim != nil {
				n.WebGPU.Limits = &WebGPULimits{
					MaxTextureDimension2D: toInt(lim.MaxTextureDimension2D),
					MaxColorAttachments:   toInt(lim.MaxColorAttachments),
					MaxBindGroups:         toInt(lim.MaxBindGroups),
					MaxVertexAttributes:   toInt(lim.MaxVertexAttributes),
					MaxBufferSize:         toInt64(lim.MaxBufferSize),
				}
			}
		}
	}

	if raw.MediaCap != nil {
		n.Media = Media{
			Video:   normalizeCodecs(raw.MediaCap.Video),
			Audio:   normalizeCodecs(raw.MediaCap.Audio),
			Display: raw.MediaCap.Display,
		}
	}

	if raw.WebCodecs != nil && raw.WebCodecs.Supported {
		n.WebCodecs = WebCodecs{
			Supported: true,
			Video:     sortedKeys(raw.WebCodecs.Video),
			Audio:     sortedKeys(raw.WebCodecs.Audio),
			Image:     sortedKeys(raw.WebCodecs.Image),
		}
	}

	if raw.EME != nil && raw.EME.Supported {
		n.EME = EME{
			Supported: true,
			Widevine:  raw.EME.Widevine != nil && raw.EME.Widevine.OK,
			PlayReady: raw.EME.PlayReady != nil && raw.EME.PlayReady.OK,
		}
	}

	n.Perms = raw.Perms

	if raw.MediaDevices != nil {
		n.MediaDevices = MediaDevices{
			Supported:   raw.MediaDevices.Supported,
			DeviceCount: toInt(raw.MediaDevices.DeviceCount),
			Kinds:       raw.MediaDevices.Kinds,
		}
	}

	if raw.Timers != nil {
		if pn := raw.Timers.PerformanceNow; pn != nil {
			n.Timers.PnMinNs = toFloat(pn.MinDeltaNs, 3)
			n.Timers.PnP95Ns = toFloat(pn.P95DeltaNs, 3)
		}
		if raf := raw.Timers.RAF; raf != nil {
			n.Timers.RafMeanMs = toFloat(raf.MeanDeltaMs, 3)
			n.Timers.RafP95Ms = toFloat(raf.P95DeltaMs, 3)
		}
	}

	if raw.Canvas != nil {
		n.Canvas = Canvas{Hash: raw.Canvas.Hash, W: toInt(raw.Canvas.W), H: toInt(raw.Canvas.H)}
	}
	if n.Canvas.Hash == "" && raw.Pro != nil && raw.Pro.CanvasGuard != nil {
		n.Canvas.Hash = raw.Pro.CanvasGuard.HashA
	}

	n.Audio.SampleRate = 44100
	if raw.Randomization != nil && raw.Randomization.Audio != nil && len(raw.Randomization.Audio.Hashes) > 0 {
		n.Audio.Hash = raw.Randomization.Audio.Hashes[0]
	}
	if n.Audio.Hash == "" && raw.Pro != nil && raw.Pro.AudioGuard != nil && len(raw.Pro.AudioGuard.OfflineHashes) > 0 {
		n.Audio.Hash = raw.Pro.AudioGuard.OfflineHashes[0]
	}
	if raw.AudioDeep != nil {
		if raw.AudioDeep.Realtime != nil {
			if sr := toInt(raw.AudioDeep.Realtime.SampleRate); sr != nil && *sr > 0 {
				n.Audio.SampleRate = *sr
			}
		}
		if len(raw.AudioDeep.Offline) > 0 {
			n.Audio.Len = toInt(raw.AudioDeep.Offline[0].Len)
		}
	}

	if raw.Intl != nil {
		n.Intl.Locale = raw.Intl.Locale
		n.Intl.TimeZone = raw.Intl.TimeZone
	}
	if raw.IntlEdge != nil {
		if raw.IntlEdge.DTFResolved != nil {
			if n.Intl.Locale == "" {
				n.Intl.Locale = raw.IntlEdge.DTFResolved.Locale
			}
			if n.Intl.TimeZone == "" {
				n.Intl.TimeZone = raw.IntlEdge.DTFResolved.TimeZone
			}
		}
		n.Intl.TzCount = toInt(raw.IntlEdge.TzCount)
	}

	if raw.RTC != nil {
		n.RTC.Supported = true
		n.RTC.Types = sortUniq(raw.RTC.Types)
	}
	if raw.Pro != nil && raw.Pro.RTCDeep != nil && raw.Pro.RTCDeep.V6Present {
		n.RTC.V6 = true
	}
	if raw.Pro4 != nil && raw.Pro4.WebrtcPlus != nil && raw.Pro4.WebrtcPlus.Cands != nil && raw.Pro4.WebrtcPlus.Cands.V6 {
		n.RTC.V6 = true
	}

	if raw.Pro2 != nil && raw.Pro2.Behavior != nil {
		b := raw.Pro2.Behavior
		if b.Pointer != nil {
			n.Behavior.PointerCount = toInt(b.Pointer.Count)
			n.Behavior.PointerMean = toFloat(b.Pointer.MeanSpeed, 3)
		}
		n.Behavior.Clicks = toInt(b.Clicks)
		n.Behavior.Wheels = toInt(b.Wheels)
		n.Behavior.Keys = toInt(b.Keys)
	}
	if n.Behavior.PointerCount == nil && raw.Pro != nil && raw.Pro.IORealism != nil {
		n.Behavior.PointerCount = toInt(raw.Pro.IORealism.HIDGranted)
	}

	if raw.Screen != nil {
		n.TouchEvidence.MaxTouchPoints = toInt(raw.Screen.TouchPoints)
	}
	if raw.Pro3 != nil && raw.Pro3.PointerTouch != nil {
		pt := raw.Pro3.PointerTouch
		n.TouchEvidence.PointerEvent = pt.PointerEvent
		n.TouchEvidence.TouchEvent = pt.TouchEvent
		n.TouchEvidence.GestureEvent = pt.GestureEvent
	}

	if raw.Pro3 != nil && raw.Pro3.FontsDeep != nil && raw.Pro3.FontsDeep.Present != nil {
		count := len(raw.Pro3.FontsDeep.Present)
		n.Fonts.PresentCount = &count
	}

	n.Derived = deriveAll(n, raw, clientWhen, nowMs)

	return n
}

func normalizeCodecs(in map[string]RawCodecProbe) map[string]CodecSupport {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]CodecSupport, len(in))
	for k, v := range in {
		out[k] = CodecSupport{Supported: v.Supported, PowerEfficient: v.PowerEfficient}
	}
	return out
}

func deriveAll(n *Normalized, raw *RawPayload, clientWhen *int64, nowMs int64) Derived {
	d := Derived{
		Time: DerivedTime{ClientWhen: clientWhen, ServerReceived: nowMs},
	}
	if clientWhen != nil {
		skew := nowMs - *clientWhen
		d.Time.SkewMs = &skew
	}

	d.Consistency = Consistency{
		UAvsWebGLRenderer:   uaVsWebGLRenderer(n),
		IntlVsTz:            intlVsTz(n),
		MediaDevicesVsPerms: mediaDevicesVsPerms(n, raw),
	}

	d.Anomalies = Anomalies{
		RafTooPerfect: false,
		VPNLikely:     vpnLikely(raw),
	}

	touchPresent := (n.TouchEvidence.MaxTouchPoints != nil && *n.TouchEvidence.MaxTouchPoints > 0) ||
		n.TouchEvidence.TouchEvent || n.TouchEvidence.PointerEvent
	d.TouchSoft = TouchSoft{Present: touchPresent, Rule: "absence-not-negative"}

	d.Scores = computeScores(n, touchPresent)

	return d
}

// uaVsWebGLRenderer flags renderer strings inconsistent with the UA's
// browser family. Chromium and Firefox expose ANGLE renderers on most
// platforms; Safari does not.
func uaVsWebGLRenderer(n *Normalized) string {
	renderer := n.WebGL2.Renderer
	if !n.WebGL2.Supported {
		renderer = n.WebGL.Renderer
	}
	if renderer == "" {
		return "unknown"
	}
	ua := strings.ToLower(n.Env.UA)
	r := strings.ToLower(renderer)
	angle := strings.Contains(r, "angle")
	ok := (strings.Contains(ua, "chrome") && angle) ||
		(strings.Contains(ua, "safari") && !angle) ||
		(strings.Contains(ua, "firefox") && angle)
	if ok {
		return "ok"
	}
	return "suspect"
}

func intlVsTz(n *Normalized) string {
	if n.Intl.Locale == "" || n.Env.Timezone == "" {
		return "unknown"
	}
	prefix := n.Intl.Locale
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	if strings.Contains(strings.ToLower(n.Env.Timezone), strings.ToLower(prefix)) {
		return "ok"
	}
	return "mismatch"
}

func mediaDevicesVsPerms(n *Normalized, raw *RawPayload) string {
	if n.MediaDevices.Supported && raw.Perms != nil && raw.Perms.Permissions["microphone"] != "" {
		return "ok"
	}
	return "unknown"
}

func vpnLikely(raw *RawPayload) bool {
	if raw.Pro4 == nil || raw.Pro4.Network == nil {
		return false
	}
	net := raw.Pro4.Network
	if net.HTTP == nil || net.RTTMs == nil || net.RTTMs.P50 == nil {
		return false
	}
	return net.HTTP.EffectiveType == "4g" && *net.RTTMs.P50 >= 100
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// computeScores produces the 0..100 realism heuristics. Touch absence is
// never penalized; presence earns a small bonus.
func computeScores(n *Normalized, touchPresent bool) Scores {
	hardware := 50.0
	if n.WebGL.Supported || n.WebGL2.Supported {
		hardware += 20
	}
	if n.WebGPU.Supported {
		hardware += 10
	}
	if n.Env.HardwareConcurrency != nil {
		hardware += 10
	}
	if n.Env.DeviceMemory != nil {
		hardware += 10
	}

	timing := 40.0
	if n.Timers.RafP95Ms != nil && *n.Timers.RafP95Ms != 0 {
		timing += 20 * clamp01(18 / *n.Timers.RafP95Ms)
	}
	if n.Timers.PnP95Ns != nil && *n.Timers.PnP95Ns != 0 {
		timing += 20
	}

	identity := 40.0
	if len(n.Env.Languages) > 0 {
		identity += 10
	}
	if n.Intl.TimeZone != "" {
		identity += 10
	}
	if n.Env.CookiesEnabled {
		identity += 10
	}

	behavior := 50.0
	if touchPresent {
		behavior += 5
	}

	total := int(math.Round(0.3*hardware + 0.25*timing + 0.3*identity + 0.15*behavior))

	band := BandLow
	switch {
	case total >= 80:
		band = BandHigh
	case total >= 60:
		band = BandMedium
	}

	return Scores{
		Buckets: ScoreBuckets{
			HardwareRealism:     int(math.Round(hardware)),
			TimingRealism:       int(math.Round(timing)),
			IdentityConsistency: int(math.Round(identity)),
			Behavior:            int(math.Round(behavior)),
		},
		Total: total,
		Band:  band,
	}
}
