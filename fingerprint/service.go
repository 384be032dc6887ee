package fingerprint

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/identity"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
	"github.com/NikitaSitlivy/fingercloak-api/snapstore"
)

// Version is the API version reported by /api/version.
const Version = "1.4.0"

// VersionInfo identifies the service.
type VersionInfo struct {
	API     string `json:"api"`
	Version string `json:"version"`
}

// SubmitInput is one client submission plus server-side enrichments.
// HeadersSrv and GeoSrv are fallbacks: they are attached only when the
// edge sensor did not already provide headers or geo. RDAP is always
// attached when present.
type SubmitInput struct {
	IP         string
	UA         string
	Origin     string
	Payload    *snapshot.RawPayload
	HeadersSrv *snapshot.HeaderInfo
	GeoSrv     *snapshot.GeoInfo
	RDAP       json.RawMessage
}

// NetworkFound reports which network sections made it into a snapshot.
type NetworkFound struct {
	Edge       bool `json:"edge"`
	DNS        bool `json:"dns"`
	WebRTC     bool `json:"webrtc"`
	TLS        bool `json:"tls"`
	TCP        bool `json:"tcp"`
	HeadersSrv bool `json:"headersSrv"`
	GeoSrv     bool `json:"geoSrv"`
	RDAP       bool `json:"rdap"`
}

// SaveResult is a saved snapshot plus the assembly flags.
type SaveResult struct {
	*snapshot.Snapshot
	NetworkFound NetworkFound `json:"networkFound"`
}

// SessionItem is the per-snapshot view in a session listing.
type SessionItem struct {
	ID     string          `json:"id"`
	TS     int64           `json:"ts"`
	Scores snapshot.Scores `json:"scores"`
}

// SessionInfo lists the snapshots saved under one correlation id.
type SessionInfo struct {
	SessionID string        `json:"sessionId"`
	Total     int           `json:"total"`
	Items     []SessionItem `json:"items"`
}

// Service is the snapshot assembler and comparison engine.
type Service struct {
	chunks *chunkstore.Store
	snaps  *snapstore.Store
	ipSalt string
	logger *slog.Logger
}

// New creates a Service. A nil logger discards log output.
func New(chunks *chunkstore.Store, snaps *snapstore.Store, ipSalt string, logger *slog.Logger) (*Service, error) {
	if chunks == nil || snaps == nil {
		return nil, errors.WrapInvalid(nil, "Service", "New", "chunk store and snapshot store are required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{chunks: chunks, snaps: snaps, ipSalt: ipSalt, logger: logger}, nil
}

// Save normalizes a submission, merges buffered chunks for its
// correlation id via a lease read, derives the identity digests and
// persists the snapshot. A chunk-read failure degrades to an empty
// network section; the submit itself never fails for that reason.
func (s *Service) Save(ctx context.Context, in SubmitInput) (*SaveResult, error) {
	normalized := snapshot.Normalize(in.Payload, in.UA)

	var corrID string
	var consent json.RawMessage
	var collectorVersion string
	if in.Payload != nil {
		if in.Payload.Meta != nil {
			corrID = in.Payload.Meta.SessionID
		}
		consent = in.Payload.Consent
		collectorVersion = in.Payload.CollectorVersion
	}

	network, found := s.assembleNetwork(ctx, corrID, in)
	if !network.Empty() {
		normalized.Network = network
	}

	snap := &snapshot.Snapshot{
		UA:               in.UA,
		Origin:           in.Origin,
		IPHash:           identity.HashIP(in.IP, s.ipSalt),
		CorrelationID:    corrID,
		Consent:          consent,
		SchemaVersion:    snapshot.SchemaVersion,
		CollectorVersion: collectorVersion,
		Normalized:       *normalized,
		StableID:         identity.StableID(normalized),
		ContentHash:      identity.ContentHash(normalized),
	}

	saved, err := s.snaps.Save(snap)
	if err != nil {
		return nil, errors.Wrap(err, "Service", "Save", "persist snapshot")
	}

	return &SaveResult{Snapshot: saved, NetworkFound: found}, nil
}

func (s *Service) assembleNetwork(ctx context.Context, corrID string, in SubmitInput) (*snapshot.Network, NetworkFound) {
	network := &snapshot.Network{}
	var found NetworkFound

	var parts map[chunkstore.Kind]json.RawMessage
	if corrID != "" {
		var err error
		parts, err = s.chunks.Peek(ctx, corrID)
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Warn("chunk read failed, assembling without network chunks",
				"sessionId", corrID, "error", err)
		}
	}

	network.Edge = parts[chunkstore.KindEdge]
	network.DNS = parts[chunkstore.KindDNS]
	network.WebRTC = parts[chunkstore.KindWebRTC]
	network.TLS = parts[chunkstore.KindTLS]
	network.TCP = parts[chunkstore.KindTCP]

	// Server enrichments apply only where the edge sensor stayed silent.
	if !rawHasKey(network.Edge, "headers") && in.HeadersSrv != nil {
		network.HeadersSrv = in.HeadersSrv
	}
	if !rawHasKey(network.Edge, "geo") && in.GeoSrv != nil {
		network.GeoSrv = in.GeoSrv
	}
	if in.RDAP != nil {
		network.RDAP = in.RDAP
	}

	found = NetworkFound{
		Edge:       network.Edge != nil,
		DNS:        network.DNS != nil,
		WebRTC:     network.WebRTC != nil,
		TLS:        network.TLS != nil,
		TCP:        network.TCP != nil,
		HeadersSrv: network.HeadersSrv != nil,
		GeoSrv:     network.GeoSrv != nil,
		RDAP:       network.RDAP != nil,
	}
	return network, found
}

// rawHasKey reports whether a raw JSON object has a non-null key.
func rawHasKey(raw json.RawMessage, key string) bool {
	if raw == nil {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	v, ok := obj[key]
	return ok && string(v) != "null"
}

// Get returns a saved snapshot by id.
func (s *Service) Get(id string) (*snapshot.Snapshot, error) {
	return s.snaps.GetByID(id)
}

// Session lists the snapshots saved under a correlation id, oldest
// first. Unknown ids are NotFound.
func (s *Service) Session(corrID string) (*SessionInfo, error) {
	items := s.snaps.GetByCorrelation(corrID)
	if len(items) == 0 {
		return nil, errors.WrapNotFound(nil, "Service", "Session", corrID)
	}

	info := &SessionInfo{SessionID: corrID, Total: len(items)}
	for _, snap := range items {
		info.Items = append(info.Items, SessionItem{
			ID:     snap.ID,
			TS:     snap.TS,
			Scores: snap.Derived.Scores,
		})
	}
	return info, nil
}

// Search proxies filtered snapshot retrieval.
func (s *Service) Search(q snapstore.Query) []snapstore.Projection {
	return s.snaps.Search(q)
}

// Stats proxies repository aggregates.
func (s *Service) Stats() snapstore.Stats {
	return s.snaps.Stats()
}

// ChunkStats proxies buffer statistics for the debug endpoint.
func (s *Service) ChunkStats(ctx context.Context) (chunkstore.DebugStats, error) {
	return s.chunks.Stats(ctx)
}

// Chunks exposes the lease read for the debug endpoint.
func (s *Service) Chunks(ctx context.Context, corrID string) (map[chunkstore.Kind]json.RawMessage, error) {
	return s.chunks.Peek(ctx, corrID)
}

// WaitChunks blocks until every wanted kind is buffered for corrID or
// the timeout elapses, and reports which of them arrived. Partial
// readiness is not an error.
func (s *Service) WaitChunks(ctx context.Context, corrID string, kinds []chunkstore.Kind, timeout time.Duration) ([]chunkstore.Kind, bool) {
	parts, err := s.chunks.Wait(ctx, corrID, kinds, chunkstore.WaitOptions{Timeout: timeout})
	if err != nil {
		return nil, false
	}
	ready := make([]chunkstore.Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := parts[k]; ok {
			ready = append(ready, k)
		}
	}
	return ready, len(ready) == len(kinds)
}

// VersionInfo returns the service identification.
func (s *Service) VersionInfo() VersionInfo {
	return VersionInfo{API: "fingercloak", Version: Version}
}
