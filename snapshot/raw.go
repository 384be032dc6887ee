package snapshot

import "encoding/json"

// RawPayload is the client submission as the collector sends it. Fields
// are pointers so absent and zero values stay distinguishable; the
// payload is validated by normalization, never trusted directly.
type RawPayload struct {
	Meta             *RawMeta          `json:"meta,omitempty"`
	Consent          json.RawMessage   `json:"consent,omitempty"`
	CollectorVersion string            `json:"collectorVersion,omitempty"`
	Env              *RawEnv           `json:"env,omitempty"`
	Screen           *RawScreen        `json:"screen,omitempty"`
	Storage          *RawStorage       `json:"storage,omitempty"`
	StoragePlus      *RawStoragePlus   `json:"storagePlus,omitempty"`
	WebGL            *RawWebGL         `json:"webgl,omitempty"`
	WebGL2           *RawWebGL         `json:"webgl2,omitempty"`
	WebGPU           *RawWebGPU        `json:"webgpu,omitempty"`
	MediaCap         *RawMediaCap      `json:"mediacap,omitempty"`
	WebCodecs        *RawWebCodecs     `json:"webcodecs,omitempty"`
	EME              *RawEME           `json:"eme,omitempty"`
	Perms            *RawPerms         `json:"perms,omitempty"`
	MediaDevices     *RawMediaDevices  `json:"mediaDevices,omitempty"`
	Timers           *RawTimers        `json:"timers,omitempty"`
	Canvas           *RawCanvas        `json:"canvas,omitempty"`
	Randomization    *RawRandomization `json:"randomization,omitempty"`
	AudioDeep        *RawAudioDeep     `json:"audioDeep,omitempty"`
	Intl             *RawIntl          `json:"intl,omitempty"`
	IntlEdge         *RawIntlEdge      `json:"intlEdge,omitempty"`
	RTC              *RawRTC           `json:"rtc,omitempty"`
	Pro              *RawPro           `json:"pro,omitempty"`
	Pro2             *RawPro2          `json:"pro2,omitempty"`
	Pro3             *RawPro3          `json:"pro3,omitempty"`
	Pro4             *RawPro4          `json:"pro4,omitempty"`
}

// RawMeta carries collector bookkeeping, including the correlation id.
type RawMeta struct {
	When      string `json:"when,omitempty"`
	Page      string `json:"page,omitempty"`
	App       string `json:"app,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type RawEnv struct {
	UA                  string   `json:"ua,omitempty"`
	Languages           []string `json:"languages,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	UTCOffset           *float64 `json:"utcOffset,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	HardwareConcurrency *float64 `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        *float64 `json:"deviceMemory,omitempty"`
	CookiesEnabled      bool     `json:"cookiesEnabled,omitempty"`
	DoNotTrack          *string  `json:"doNotTrack,omitempty"`
}

type RawScreen struct {
	Screen      string   `json:"screen,omitempty"`
	Avail       string   `json:"avail,omitempty"`
	Inner       string   `json:"inner,omitempty"`
	ColorDepth  *float64 `json:"colorDepth,omitempty"`
	DPR         *float64 `json:"dpr,omitempty"`
	TouchPoints *float64 `json:"touchPoints,omitempty"`
}

type RawStorage struct {
	UsageBytes *float64            `json:"usageBytes,omitempty"`
	QuotaBytes *float64            `json:"quotaBytes,omitempty"`
	Estimate   *RawStorageEstimate `json:"estimate,omitempty"`
}

type RawStorageEstimate struct {
	Usage *float64 `json:"usage,omitempty"`
	Quota *float64 `json:"quota,omitempty"`
}

type RawStoragePlus struct {
	Persisted bool `json:"persisted,omitempty"`
	Buckets   *struct {
		Supported bool `json:"supported,omitempty"`
	} `json:"buckets,omitempty"`
}

// RawWebGL covers both WebGL1 and WebGL2 probes; fields the older
// context does not report stay nil.
type RawWebGL struct {
	Supported           bool     `json:"supported,omitempty"`
	Vendor              string   `json:"vendor,omitempty"`
	Renderer            string   `json:"renderer,omitempty"`
	Version             string   `json:"version,omitempty"`
	GLSL                string   `json:"glsl,omitempty"`
	MaxTexture          *float64 `json:"maxTexture,omitempty"`
	MaxAttribs          *float64 `json:"maxAttribs,omitempty"`
	MaxDrawBuffers      *float64 `json:"maxDrawBuffers,omitempty"`
	MaxColorAttachments *float64 `json:"maxColorAttachments,omitempty"`
	Samples             *float64 `json:"samples,omitempty"`
	ExtensionsFirst25   []string `json:"extensionsFirst25,omitempty"`
	Extensions          []string `json:"extensions,omitempty"`
}

type RawWebGPU struct {
	Supported bool `json:"supported,omitempty"`
	Adapter   *struct {
		Features []string `json:"features,omitempty"`
		Limits   *struct {
			MaxTextureDimension2D *float64 `json:"maxTextureDimension2D,omitempty"`
			MaxColorAttachments   *float64 `json:"maxColorAttachments,omitempty"`
			MaxBindGroups         *float64 `json:"maxBindGroups,omitempty"`
			MaxVertexAttributes   *float64 `json:"maxVertexAttributes,omitempty"`
			MaxBufferSize         *float64 `json:"maxBufferSize,omitempty"`
		} `json:"limits,omitempty"`
	} `json:"adapter,omitempty"`
}

type RawCodecProbe struct {
	Supported      bool `json:"supported,omitempty"`
	PowerEfficient bool `json:"powerEfficient,omitempty"`
}

type RawMediaCap struct {
	Video   map[string]RawCodecProbe `json:"video,omitempty"`
	Audio   map[string]RawCodecProbe `json:"audio,omitempty"`
	Display json.RawMessage          `json:"display,omitempty"`
}

type RawWebCodecs struct {
	Supported bool                       `json:"supported,omitempty"`
	Video     map[string]json.RawMessage `json:"video,omitempty"`
	Audio     map[string]json.RawMessage `json:"audio,omitempty"`
	Image     map[string]json.RawMessage `json:"image,omitempty"`
}

type RawEME struct {
	Supported bool `json:"supported,omitempty"`
	Widevine  *struct {
		OK bool `json:"ok,omitempty"`
	} `json:"widevine,omitempty"`
	PlayReady *struct {
		OK bool `json:"ok,omitempty"`
	} `json:"playready,omitempty"`
}

type RawPerms struct {
	Permissions map[string]string `json:"permissions,omitempty"`
}

type RawMediaDevices struct {
	Supported   bool            `json:"supported,omitempty"`
	DeviceCount *float64        `json:"deviceCount,omitempty"`
	Kinds       json.RawMessage `json:"kinds,omitempty"`
}

type RawTimers struct {
	PerformanceNow *struct {
		MinDeltaNs *float64 `json:"minDeltaNs,omitempty"`
		P95DeltaNs *float64 `json:"p95DeltaNs,omitempty"`
	} `json:"performanceNow,omitempty"`
	RAF *struct {
		MeanDeltaMs *float64 `json:"meanDeltaMs,omitempty"`
		P95DeltaMs  *float64 `json:"p95DeltaMs,omitempty"`
	} `json:"rAF,omitempty"`
}

type RawCanvas struct {
	Hash string   `json:"hash,omitempty"`
	W    *float64 `json:"w,omitempty"`
	H    *float64 `json:"h,omitempty"`
}

type RawRandomization struct {
	Audio *struct {
		Hashes []string `json:"hashes,omitempty"`
	} `json:"audio,omitempty"`
}

type RawAudioDeep struct {
	Realtime *struct {
		SampleRate *float64 `json:"sampleRate,omitempty"`
	} `json:"realtime,omitempty"`
	Offline []struct {
		Len *float64 `json:"len,omitempty"`
	} `json:"offline,omitempty"`
}

type RawIntl struct {
	Locale   string `json:"locale,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type RawIntlEdge struct {
	DTFResolved *struct {
		Locale   string `json:"locale,omitempty"`
		TimeZone string `json:"timeZone,omitempty"`
	} `json:"dtfResolved,omitempty"`
	TzCount *float64 `json:"tzCount,omitempty"`
}

type RawRTC struct {
	Types []string `json:"types,omitempty"`
}

type RawPro struct {
	CanvasGuard *struct {
		HashA string `json:"hashA,omitempty"`
	} `json:"canvasGuard,omitempty"`
	AudioGuard *struct {
		OfflineHashes []string `json:"offlineHashes,omitempty"`
	} `json:"audioGuard,omitempty"`
	RTCDeep *struct {
		V6Present bool `json:"v6Present,omitempty"`
	} `json:"rtcDeep,omitempty"`
	IORealism *struct {
		HIDGranted *float64 `json:"hidGranted,omitempty"`
	} `json:"ioRealism,omitempty"`
}

type RawPro2 struct {
	Behavior *struct {
		Pointer *struct {
			Count     *float64 `json:"count,omitempty"`
			MeanSpeed *float64 `json:"meanSpeed,omitempty"`
		} `json:"pointer,omitempty"`
		Clicks *float64 `json:"clicks,omitempty"`
		Wheels *float64 `json:"wheels,omitempty"`
		Keys   *float64 `json:"keys,omitempty"`
	} `json:"behavior,omitempty"`
}

type RawPro3 struct {
	PointerTouch *struct {
		PointerEvent bool `json:"pointerEvent,omitempty"`
		TouchEvent   bool `json:"touchEvent,omitempty"`
		GestureEvent bool `json:"gestureEvent,omitempty"`
	} `json:"pointerTouch,omitempty"`
	FontsDeep *struct {
		Present []string `json:"present,omitempty"`
	} `json:"fontsDeep,omitempty"`
}

type RawPro4 struct {
	WebrtcPlus *struct {
		Cands *struct {
			V6 bool `json:"v6,omitempty"`
		} `json:"cands,omitempty"`
	} `json:"webrtcPlus,omitempty"`
	Network *struct {
		HTTP *struct {
			EffectiveType string `json:"effectiveType,omitempty"`
		} `json:"http,omitempty"`
		RTTMs *struct {
			P50 *float64 `json:"p50,omitempty"`
		} `json:"rttMs,omitempty"`
	} `json:"network,omitempty"`
}
