package snapshot

import "encoding/json"

// SchemaVersion is bumped when the normalized shape changes.
const SchemaVersion = 1

// Meta is collector bookkeeping carried through normalization.
type Meta struct {
	When        string `json:"when,omitempty"`
	Page        string `json:"page,omitempty"`
	App         string `json:"app,omitempty"`
	CollectedAt string `json:"collectedAt"`
}

type Env struct {
	UA                  string   `json:"ua,omitempty"`
	Languages           []string `json:"languages,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	UTCOffset           *int     `json:"utcOffset,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	HardwareConcurrency *int     `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        *int     `json:"deviceMemory,omitempty"`
	CookiesEnabled      bool     `json:"cookiesEnabled"`
	DNT                 *string  `json:"dnt,omitempty"`
}

type Screen struct {
	Screen      string   `json:"screen,omitempty"`
	Avail       string   `json:"avail,omitempty"`
	Inner       string   `json:"inner,omitempty"`
	ColorDepth  *int     `json:"colorDepth,omitempty"`
	DPR         *float64 `json:"dpr,omitempty"`
	TouchPoints *int     `json:"touchPoints,omitempty"`
}

type Storage struct {
	UsageBytes *int64 `json:"usageBytes,omitempty"`
	QuotaBytes *int64 `json:"quotaBytes,omitempty"`
	Persisted  bool   `json:"persisted"`
	Buckets    bool   `json:"buckets"`
}

type WebGL struct {
	Supported  bool   `json:"supported"`
	Vendor     string `json:"vendor,omitempty"`
	Renderer   string `json:"renderer,omitempty"`
	Version    string `json:"version,omitempty"`
	GLSL       string `json:"glsl,omitempty"`
	MaxTexture *int   `json:"maxTexture,omitempty"`
	MaxAttribs *int   `json:"maxAttribs,omitempty"`
	ExtCount   int    `json:"extCount,omitempty"`
}

type WebGL2 struct {
	Supported   bool   `json:"supported"`
	Vendor      string `json:"vendor,omitempty"`
	Renderer    string `json:"renderer,omitempty"`
	Version     string `json:"version,omitempty"`
	GLSL        string `json:"glsl,omitempty"`
	MaxTexture  *int   `json:"maxTexture,omitempty"`
	MaxAttribs  *int   `json:"maxAttribs,omitempty"`
	DrawBufs    *int   `json:"drawBufs,omitempty"`
	ColorAttach *int   `json:"colorAttach,omitempty"`
	Samples     *int   `json:"samples,omitempty"`
	ExtCount    int    `json:"extCount,omitempty"`
}

type WebGPULimits struct {
	MaxTextureDimension2D *int   `json:"maxTextureDimension2D,omitempty"`
	MaxColorAttachments   *int   `json:"maxColorAttachments,omitempty"`
	MaxBindGroups         *int   `json:"maxBindGroups,omitempty"`
	MaxVertexAttributes   *int   `json:"maxVertexAttributes,omitempty"`
	MaxBufferSize         *int64 `json:"maxBufferSize,omitempty"`
}

type WebGPU struct {
	Supported    bool          `json:"supported"`
	FeaturesHash string        `json:"featuresHash,omitempty"`
	Limits       *WebGPULimits `json:"limits,omitempty"`
}

type CodecSupport struct {
	Supported      bool `json:"supported"`
	PowerEfficient bool `json:"powerEfficient"`
}

type Media struct {
	Video   map[string]CodecSupport `json:"video,omitempty"`
	Audio   map[string]CodecSupport `json:"audio,omitempty"`
	Display json.RawMessage         `json:"display,omitempty"`
}

type WebCodecs struct {
	Supported bool     `json:"supported"`
	Video     []string `json:"video,omitempty"`
	Audio     []string `json:"audio,omitempty"`
	Image     []string `json:"image,omitempty"`
}

type EME struct {
	Supported bool `json:"supported"`
	Widevine  bool `json:"widevine,omitempty"`
	PlayReady bool `json:"playready,omitempty"`
}

type MediaDevices struct {
	Supported   bool            `json:"supported"`
	DeviceCount *int            `json:"deviceCount,omitempty"`
	Kinds       json.RawMessage `json:"kinds,omitempty"`
}

type Timers struct {
	PnMinNs   *float64 `json:"pnMinNs,omitempty"`
	PnP95Ns   *float64 `json:"pnP95Ns,omitempty"`
	RafMeanMs *float64 `json:"rafMeanMs,omitempty"`
	RafP95Ms  *float64 `json:"rafP95Ms,omitempty"`
}

type Canvas struct {
	Hash string `json:"hash,omitempty"`
	W    *int   `json:"w,omitempty"`
	H    *int   `json:"h,omitempty"`
}

type Audio struct {
	Hash       string `json:"hash,omitempty"`
	SampleRate int    `json:"sr"`
	Len        *int   `json:"len,omitempty"`
}

type Intl struct {
	Locale   string `json:"locale,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
	TzCount  *int   `json:"tzCount,omitempty"`
}

type RTC struct {
	Supported bool     `json:"supported"`
	Types     []string `json:"types,omitempty"`
	V6        bool     `json:"v6"`
}

type Behavior struct {
	PointerCount *int     `json:"pointerCount,omitempty"`
	PointerMean  *float64 `json:"pointerMean,omitempty"`
	Clicks       *int     `json:"clicks,omitempty"`
	Wheels       *int     `json:"wheels,omitempty"`
	Keys         *int     `json:"keys,omitempty"`
}

type TouchEvidence struct {
	MaxTouchPoints *int `json:"maxTouchPoints,omitempty"`
	PointerEvent   bool `json:"pointerEvent"`
	TouchEvent     bool `json:"touchEvent"`
	GestureEvent   bool `json:"gestureEvent"`
}

type Fonts struct {
	PresentCount *int `json:"presentCount,omitempty"`
}

type DerivedTime struct {
	ClientWhen     *int64 `json:"clientWhen,omitempty"`
	ServerReceived int64  `json:"serverReceived"`
	SkewMs         *int64 `json:"skewMs,omitempty"`
}

// Consistency flag values are "ok", "suspect", "mismatch" or "unknown".
type Consistency struct {
	UAvsWebGLRenderer   string `json:"ua_vs_webgl_renderer"`
	IntlVsTz            string `json:"intl_vs_tz"`
	MediaDevicesVsPerms string `json:"mediaDevices_vs_perms"`
}

type Anomalies struct {
	RafTooPerfect bool `json:"rafTooPerfect"`
	VPNLikely     bool `json:"vpnLikely"`
}

type TouchSoft struct {
	Present bool   `json:"present"`
	Rule    string `json:"rule"`
}

type ScoreBuckets struct {
	HardwareRealism     int `json:"hardwareRealism"`
	TimingRealism       int `json:"timingRealism"`
	IdentityConsistency int `json:"identityConsistency"`
	Behavior            int `json:"behavior"`
}

// Band values.
const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

type Scores struct {
	Buckets ScoreBuckets `json:"buckets"`
	Total   int          `json:"total"`
	Band    string       `json:"band"`
}

type Derived struct {
	Time        DerivedTime `json:"time"`
	Consistency Consistency `json:"consistency"`
	Anomalies   Anomalies   `json:"anomalies"`
	TouchSoft   TouchSoft   `json:"touchSoft"`
	Scores      Scores      `json:"scores"`
}

// HeaderInfo is the server-observed request header shape attached when
// the edge sensor did not provide its own.
type HeaderInfo struct {
	Order  []string    `json:"order"`
	Hash   string      `json:"hash"`
	Sample [][2]string `json:"sample,omitempty"`
}

// GeoInfo is the server-side GeoIP fallback.
type GeoInfo struct {
	ASN     string `json:"asn,omitempty"`
	ISP     string `json:"isp,omitempty"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// Network is the section assembled from buffered sensor chunks plus
// server-side fallbacks. Chunk payloads stay as raw JSON: they were
// validated and clamped at the ingest boundary.
type Network struct {
	Edge       json.RawMessage `json:"edge,omitempty"`
	DNS        json.RawMessage `json:"dns,omitempty"`
	WebRTC     json.RawMessage `json:"webrtc,omitempty"`
	TLS        json.RawMessage `json:"tls,omitempty"`
	TCP        json.RawMessage `json:"tcp,omitempty"`
	HeadersSrv *HeaderInfo     `json:"headersSrv,omitempty"`
	GeoSrv     *GeoInfo        `json:"geoSrv,omitempty"`
	RDAP       json.RawMessage `json:"rdap,omitempty"`
}

// Empty reports whether no section was populated.
func (n *Network) Empty() bool {
	return n == nil || (n.Edge == nil && n.DNS == nil && n.WebRTC == nil &&
		n.TLS == nil && n.TCP == nil && n.HeadersSrv == nil && n.GeoSrv == nil && n.RDAP == nil)
}

// Normalized is the stable structure derived from a RawPayload.
type Normalized struct {
	Meta          Meta          `json:"meta"`
	Env           Env           `json:"env"`
	Screen        Screen        `json:"screen"`
	Storage       Storage       `json:"storage"`
	WebGL         WebGL         `json:"webgl"`
	WebGL2        WebGL2        `json:"webgl2"`
	WebGPU        WebGPU        `json:"webgpu"`
	Media         Media         `json:"media"`
	WebCodecs     WebCodecs     `json:"webcodecs"`
	EME           EME           `json:"eme"`
	Perms         *RawPerms     `json:"perms,omitempty"`
	MediaDevices  MediaDevices  `json:"mediaDevices"`
	Timers        Timers        `json:"timers"`
	Canvas        Canvas        `json:"canvas"`
	Audio         Audio         `json:"audio"`
	Intl          Intl          `json:"intl"`
	RTC           RTC           `json:"rtc"`
	Behavior      Behavior      `json:"behavior"`
	TouchEvidence TouchEvidence `json:"touchEvidence"`
	Fonts         Fonts         `json:"fonts"`
	Derived       Derived       `json:"derived"`
	Network       *Network      `json:"network,omitempty"`
}

// Snapshot is the assembled record. Immutable once saved; owned by the
// repository after creation.
type Snapshot struct {
	ID               string          `json:"id"`
	TS               int64           `json:"ts"` // unix millis
	UA               string          `json:"ua"`
	Origin           string          `json:"origin,omitempty"`
	IPHash           string          `json:"ipHash"`
	CorrelationID    string          `json:"sessionId,omitempty"`
	Consent          json.RawMessage `json:"consent,omitempty"`
	SchemaVersion    int             `json:"schemaVersion"`
	CollectorVersion string          `json:"collectorVersion,omitempty"`
	Normalized
	StableID    string `json:"stableId"`
	ContentHash string `json:"contentHash"`
}
