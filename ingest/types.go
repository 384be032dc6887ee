package ingest

// TLSInfo is the negotiated TLS parameters a sensor observed.
type TLSInfo struct {
	Version string `json:"version,omitempty"`
	Cipher  string `json:"cipher,omitempty"`
}

// H2Settings are the SETTINGS frame values from the client.
type H2Settings struct {
	HeaderTableSize   *int64 `json:"headerTableSize,omitempty"`
	EnablePush        *int64 `json:"enablePush,omitempty"`
	InitialWindowSize *int64 `json:"initialWindowSize,omitempty"`
	MaxHeaderListSize *int64 `json:"maxHeaderListSize,omitempty"`
}

// H2Info is the HTTP/2 connection shape.
type H2Info struct {
	Settings     H2Settings `json:"settings"`
	WindowUpdate struct {
		SizeIncrement *int64 `json:"sizeIncrement,omitempty"`
	} `json:"windowUpdate"`
	PrioritySig string `json:"prioritySig,omitempty"`
}

// GeoHint is coarse sensor-side geo enrichment.
type GeoHint struct {
	ASN     string `json:"asn,omitempty"`
	ISP     string `json:"isp,omitempty"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// HeaderCapture is the raw request header order as the edge saw it.
type HeaderCapture struct {
	Order  []string    `json:"order,omitempty"`
	Hash   string      `json:"hash,omitempty"`
	Sample [][2]string `json:"sample,omitempty"`
}

// EdgeChunk is the edge/proxy/worker observation: handshake shape,
// header order and coarse geo for one request.
type EdgeChunk struct {
	CorrID      string         `json:"corrId"`
	ObservedAt  int64          `json:"observedAt"`
	IP          string         `json:"ip,omitempty"`
	HTTPVersion string         `json:"httpVersion,omitempty"`
	ALPN        string         `json:"alpn,omitempty"`
	TLS         TLSInfo        `json:"tls"`
	JA3         string         `json:"ja3,omitempty"`
	JA3N        string         `json:"ja3n,omitempty"`
	JA4         string         `json:"ja4,omitempty"`
	JA4T        string         `json:"ja4t,omitempty"`
	H2          *H2Info        `json:"h2,omitempty"`
	Geo         *GeoHint       `json:"geo,omitempty"`
	Headers     *HeaderCapture `json:"headers,omitempty"`
}

// Resolver is one DNS resolver seen in authoritative logs.
type Resolver struct {
	IP      string `json:"ip"`
	ASN     string `json:"asn,omitempty"`
	ISP     string `json:"isp,omitempty"`
	Country string `json:"country,omitempty"`
	V       int    `json:"v"` // 4 or 6
}

// DNSChunk is the resolver set observed for one correlation id.
type DNSChunk struct {
	CorrID    string     `json:"corrId"`
	Method    string     `json:"method"`
	TookMs    *int64     `json:"tookMs,omitempty"`
	Resolvers []Resolver `json:"resolvers"`
}

// Candidate is one ICE candidate, IP included as the sensor sent it.
type Candidate struct {
	Protocol   string `json:"protocol,omitempty"`
	IP         string `json:"ip,omitempty"`
	Port       *int64 `json:"port,omitempty"`
	Type       string `json:"type,omitempty"`
	RelAddr    string `json:"relAddr,omitempty"`
	RelPort    *int64 `json:"relPort,omitempty"`
	Foundation string `json:"foundation,omitempty"`
	Priority   *int64 `json:"priority,omitempty"`
}

// CandidateSummary aggregates candidate types for quick checks.
type CandidateSummary struct {
	Host  bool `json:"host"`
	Srflx bool `json:"srflx"`
	Relay bool `json:"relay"`
	V6    bool `json:"v6"`
}

// WebRTCChunk is the ICE gathering result.
type WebRTCChunk struct {
	CorrID string `json:"corrId"`
	Stun   struct {
		URI string `json:"uri,omitempty"`
		OK  bool   `json:"ok"`
	} `json:"stun"`
	Candidates []Candidate `json:"candidates"`
	Stats      struct {
		GatherTimeMs *int64 `json:"gatherTimeMs,omitempty"`
		ICESuccess   bool   `json:"iceSuccess"`
	} `json:"stats"`
	Summary CandidateSummary `json:"summary"`
}

// TLSChunk is the standalone TLS/JA3/JA4/H2 observation from a proxy
// sensor that is not a full edge.
type TLSChunk struct {
	CorrID      string  `json:"corrId"`
	ObservedAt  int64   `json:"observedAt"`
	HTTPVersion string  `json:"httpVersion,omitempty"`
	ALPN        string  `json:"alpn,omitempty"`
	TLS         TLSInfo `json:"tls"`
	JA3         string  `json:"ja3,omitempty"`
	JA3N        string  `json:"ja3n,omitempty"`
	JA4         string  `json:"ja4,omitempty"`
	JA4T        string  `json:"ja4t,omitempty"`
	H2          *H2Info `json:"h2,omitempty"`
}

// TCPChunk is the passive TCP stack signature.
type TCPChunk struct {
	CorrID     string `json:"corrId"`
	MSS        *int64 `json:"mss,omitempty"`
	WS         *int64 `json:"ws,omitempty"`
	SACK       bool   `json:"sack"`
	TSVal      *int64 `json:"tsVal,omitempty"`
	TTLSeen    *int64 `json:"ttlSeen,omitempty"`
	HopsEst    *int64 `json:"hopsEst,omitempty"`
	MTUEst     *int64 `json:"mtuEst,omitempty"`
	VPNLikely  bool   `json:"vpnLikely"`
	ObservedAt int64  `json:"observedAt"`
}

// Receipt acknowledges an accepted chunk.
type Receipt struct {
	OK     bool   `json:"ok"`
	CorrID string `json:"corrId"`
	// Kind-specific extras, omitted when not applicable.
	Count     *int              `json:"count,omitempty"`
	Total     *int              `json:"total,omitempty"`
	Summary   *CandidateSummary `json:"summary,omitempty"`
	VPNLikely *bool             `json:"vpnLikely,omitempty"`
}
