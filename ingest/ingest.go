package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
)

// Handler validates raw sensor submissions and buffers the typed
// result under the submission's correlation id.
type Handler struct {
	chunks     *chunkstore.Store
	edgeSecret string
	tlsSecret  string
	logger     *slog.Logger
}

// NewHandler builds the ingest boundary. Empty secrets disable
// signature checks for the matching kind.
func NewHandler(chunks *chunkstore.Store, edgeSecret, tlsSecret string, logger *slog.Logger) (*Handler, error) {
	if chunks == nil {
		return nil, errors.WrapInvalid(nil, "ingest", "NewHandler", "chunk store is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{chunks: chunks, edgeSecret: edgeSecret, tlsSecret: tlsSecret, logger: logger}, nil
}

type rawHandshake struct {
	ObservedAt  *float64 `json:"observedAt"`
	IP          string   `json:"ip"`
	HTTPVersion string   `json:"httpVersion"`
	ALPN        string   `json:"alpn"`
	TLS         struct {
		Version string `json:"version"`
		Cipher  string `json:"cipher"`
	} `json:"tls"`
	JA3  string `json:"ja3"`
	JA3N string `json:"ja3n"`
	JA4  string `json:"ja4"`
	JA4T string `json:"ja4t"`
	H2   *struct {
		Settings struct {
			HeaderTableSize   *float64 `json:"headerTableSize"`
			EnablePush        *float64 `json:"enablePush"`
			InitialWindowSize *float64 `json:"initialWindowSize"`
			MaxHeaderListSize *float64 `json:"maxHeaderListSize"`
		} `json:"settings"`
		WindowUpdate struct {
			SizeIncrement *float64 `json:"sizeIncrement"`
		} `json:"windowUpdate"`
		PrioritySig string `json:"prioritySig"`
	} `json:"h2"`
	Geo *struct {
		ASN     string `json:"asn"`
		ISP     string `json:"isp"`
		Country string `json:"country"`
		Region  string `json:"region"`
		City    string `json:"city"`
	} `json:"geo"`
	Headers *struct {
		Order  []string   `json:"order"`
		Hash   string     `json:"hash"`
		Sample [][]string `json:"sample"`
	} `json:"headers"`
}

func (r *rawHandshake) observedAtOrNow() int64 {
	if ts := normFloat(r.ObservedAt); ts != nil && *ts > 0 {
		return *ts
	}
	return time.Now().UnixMilli()
}

func (r *rawHandshake) h2Info() *H2Info {
	if r.H2 == nil {
		return nil
	}
	h2 := &H2Info{PrioritySig: normStr(r.H2.PrioritySig, 128)}
	h2.Settings = H2Settings{
		HeaderTableSize:   normFloat(r.H2.Settings.HeaderTableSize),
		EnablePush:        normFloat(r.H2.Settings.EnablePush),
		InitialWindowSize: normFloat(r.H2.Settings.InitialWindowSize),
		MaxHeaderListSize: normFloat(r.H2.Settings.MaxHeaderListSize),
	}
	h2.WindowUpdate.SizeIncrement = normFloat(r.H2.WindowUpdate.SizeIncrement)
	return h2
}

// Edge accepts an edge observation: TLS fingerprints, HTTP/2 shape,
// header order and coarse geo. Signed when an edge secret is set.
func (h *Handler) Edge(ctx context.Context, corrID string, body []byte) (*Receipt, error) {
	if err := verifySignature(h.edgeSecret, body); err != nil {
		return nil, err
	}

	var raw rawHandshake
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "Edge", "decode payload")
	}

	chunk := EdgeChunk{
		CorrID:      corrID,
		ObservedAt:  raw.observedAtOrNow(),
		IP:          normStr(raw.IP, 64),
		HTTPVersion: normStr(raw.HTTPVersion, 16),
		ALPN:        normStr(raw.ALPN, 16),
		TLS: TLSInfo{
			Version: normStr(raw.TLS.Version, 32),
			Cipher:  normStr(raw.TLS.Cipher, 64),
		},
		JA3:  normStr(raw.JA3, 128),
		JA3N: normStr(raw.JA3N, 128),
		JA4:  normStr(raw.JA4, 128),
		JA4T: normStr(raw.JA4T, 128),
		H2:   raw.h2Info(),
	}
	if raw.Geo != nil {
		chunk.Geo = &GeoHint{
			ASN:     normStr(raw.Geo.ASN, 32),
			ISP:     normStr(raw.Geo.ISP, 128),
			Country: normStr(raw.Geo.Country, 64),
			Region:  normStr(raw.Geo.Region, 64),
			City:    normStr(raw.Geo.City, 64),
		}
	}
	if raw.Headers != nil {
		hc := &HeaderCapture{Hash: normStr(raw.Headers.Hash, 64)}
		for _, name := range clampList(raw.Headers.Order, 256) {
			hc.Order = append(hc.Order, normStr(name, 128))
		}
		for _, pair := range clampList(raw.Headers.Sample, 20) {
			var name, value string
			if len(pair) > 0 {
				name = normStr(pair[0], 64)
			}
			if len(pair) > 1 {
				value = normStr(pair[1], 256)
			}
			hc.Sample = append(hc.Sample, [2]string{name, value})
		}
		chunk.Headers = hc
	}

	if err := h.add(ctx, corrID, chunkstore.KindEdge, chunk); err != nil {
		return nil, err
	}
	return &Receipt{OK: true, CorrID: corrID}, nil
}

// TLS accepts a standalone handshake observation from a proxy sensor.
// Same shape as edge minus client IP, geo and headers.
func (h *Handler) TLS(ctx context.Context, corrID string, body []byte) (*Receipt, error) {
	if err := verifySignature(h.tlsSecret, body); err != nil {
		return nil, err
	}

	var raw rawHandshake
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "TLS", "decode payload")
	}

	chunk := TLSChunk{
		CorrID:      corrID,
		ObservedAt:  raw.observedAtOrNow(),
		HTTPVersion: normStr(raw.HTTPVersion, 16),
		ALPN:        normStr(raw.ALPN, 16),
		TLS: TLSInfo{
			Version: normStr(raw.TLS.Version, 32),
			Cipher:  normStr(raw.TLS.Cipher, 64),
		},
		JA3:  normStr(raw.JA3, 128),
		JA3N: normStr(raw.JA3N, 128),
		JA4:  normStr(raw.JA4, 128),
		JA4T: normStr(raw.JA4T, 128),
		H2:   raw.h2Info(),
	}

	if err := h.add(ctx, corrID, chunkstore.KindTLS, chunk); err != nil {
		return nil, err
	}
	return &Receipt{OK: true, CorrID: corrID}, nil
}

// DNS accepts the resolver set observed for a correlation id.
func (h *Handler) DNS(ctx context.Context, corrID string, body []byte) (*Receipt, error) {
	var raw struct {
		Method    string   `json:"method"`
		TookMs    *float64 `json:"tookMs"`
		Resolvers []struct {
			IP      string   `json:"ip"`
			ASN     string   `json:"asn"`
			ISP     string   `json:"isp"`
			Country string   `json:"country"`
			V       *float64 `json:"v"`
		} `json:"resolvers"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "DNS", "decode payload")
	}

	chunk := DNSChunk{
		CorrID:    corrID,
		Method:    normStr(raw.Method, 64),
		TookMs:    normFloat(raw.TookMs),
		Resolvers: []Resolver{},
	}
	if chunk.Method == "" {
		chunk.Method = "authoritative-logs"
	}
	for _, r := range clampList(raw.Resolvers, maxResolvers) {
		ip := normStr(r.IP, 64)
		if ip == "" {
			continue
		}
		v := 4
		if r.V != nil && int(*r.V) == 6 {
			v = 6
		}
		chunk.Resolvers = append(chunk.Resolvers, Resolver{
			IP:      ip,
			ASN:     normStr(r.ASN, 32),
			ISP:     normStr(r.ISP, 128),
			Country: normStr(r.Country, 64),
			V:       v,
		})
	}

	if err := h.add(ctx, corrID, chunkstore.KindDNS, chunk); err != nil {
		return nil, err
	}
	count := len(chunk.Resolvers)
	return &Receipt{OK: true, CorrID: corrID, Count: &count}, nil
}

// WebRTC accepts the ICE gathering result and derives the candidate
// type summary. Candidates without a type or any address are dropped.
func (h *Handler) WebRTC(ctx context.Context, corrID string, body []byte) (*Receipt, error) {
	var raw struct {
		Stun struct {
			URI string `json:"uri"`
			OK  bool   `json:"ok"`
		} `json:"stun"`
		Candidates []struct {
			Protocol   string   `json:"protocol"`
			IP         string   `json:"ip"`
			Address    string   `json:"address"`
			Port       *float64 `json:"port"`
			Type       string   `json:"type"`
			RelAddr    string   `json:"relAddr"`
			RelPort    *float64 `json:"relPort"`
			Foundation string   `json:"foundation"`
			Priority   *float64 `json:"priority"`
		} `json:"candidates"`
		Stats struct {
			GatherTimeMs *float64 `json:"gatherTimeMs"`
			ICESuccess   bool     `json:"iceSuccess"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "WebRTC", "decode payload")
	}

	chunk := WebRTCChunk{CorrID: corrID, Candidates: []Candidate{}}
	chunk.Stun.URI = normStr(raw.Stun.URI, 256)
	chunk.Stun.OK = raw.Stun.OK
	chunk.Stats.GatherTimeMs = normFloat(raw.Stats.GatherTimeMs)
	chunk.Stats.ICESuccess = raw.Stats.ICESuccess

	for _, c := range clampList(raw.Candidates, maxCands) {
		ip := normStr(c.IP, 64)
		if ip == "" {
			ip = normStr(c.Address, 64)
		}
		cand := Candidate{
			Protocol:   normStr(c.Protocol, 8),
			IP:         ip,
			Port:       normFloat(c.Port),
			Type:       normStr(c.Type, 16),
			RelAddr:    normStr(c.RelAddr, 64),
			RelPort:    normFloat(c.RelPort),
			Foundation: normStr(c.Foundation, 64),
			Priority:   normFloat(c.Priority),
		}
		if cand.Type == "" || (cand.IP == "" && cand.RelAddr == "") {
			continue
		}
		chunk.Candidates = append(chunk.Candidates, cand)
	}
	chunk.Summary = deriveSummary(chunk.Candidates)

	if err := h.add(ctx, corrID, chunkstore.KindWebRTC, chunk); err != nil {
		return nil, err
	}
	total := len(chunk.Candidates)
	return &Receipt{OK: true, CorrID: corrID, Total: &total, Summary: &chunk.Summary}, nil
}

// TCP accepts the passive TCP stack signature.
func (h *Handler) TCP(ctx context.Context, corrID string, body []byte) (*Receipt, error) {
	var raw struct {
		MSS        *float64 `json:"mss"`
		WS         *float64 `json:"ws"`
		SACK       bool     `json:"sack"`
		TSVal      *float64 `json:"tsVal"`
		TTLSeen    *float64 `json:"ttlSeen"`
		HopsEst    *float64 `json:"hopsEst"`
		MTUEst     *float64 `json:"mtuEst"`
		VPNLikely  bool     `json:"vpnLikely"`
		ObservedAt *float64 `json:"observedAt"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "TCP", "decode payload")
	}

	chunk := TCPChunk{
		CorrID:     corrID,
		MSS:        normFloat(raw.MSS),
		WS:         normFloat(raw.WS),
		SACK:       raw.SACK,
		TSVal:      normFloat(raw.TSVal),
		TTLSeen:    normFloat(raw.TTLSeen),
		HopsEst:    normFloat(raw.HopsEst),
		MTUEst:     normFloat(raw.MTUEst),
		VPNLikely:  raw.VPNLikely,
		ObservedAt: time.Now().UnixMilli(),
	}
	if ts := normFloat(raw.ObservedAt); ts != nil && *ts > 0 {
		chunk.ObservedAt = *ts
	}

	if err := h.add(ctx, corrID, chunkstore.KindTCP, chunk); err != nil {
		return nil, err
	}
	return &Receipt{OK: true, CorrID: corrID, VPNLikely: &chunk.VPNLikely}, nil
}

// deriveSummary flags which candidate classes showed up at all.
func deriveSummary(cands []Candidate) CandidateSummary {
	var s CandidateSummary
	for _, c := range cands {
		switch c.Type {
		case "host":
			s.Host = true
		case "srflx":
			s.Srflx = true
		case "relay":
			s.Relay = true
		}
		if strings.Contains(c.IP, ":") {
			s.V6 = true
		}
	}
	return s
}

func (h *Handler) add(ctx context.Context, corrID string, kind chunkstore.Kind, chunk any) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return errors.WrapInvalid(err, "ingest", "add", "encode chunk")
	}
	count, err := h.chunks.Add(ctx, corrID, kind, payload)
	if err != nil {
		return err
	}
	h.logger.Debug("chunk buffered", "kind", string(kind), "corrId", corrID, "parts", count)
	return nil
}
