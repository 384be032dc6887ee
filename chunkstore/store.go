package chunkstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/kvstore"
)

// Kind identifies the sensor a chunk came from.
type Kind string

// The closed set of chunk kinds. The ingest boundary validates against
// this set; the store itself only requires a non-empty kind.
const (
	KindEdge   Kind = "edge"
	KindDNS    Kind = "dns"
	KindWebRTC Kind = "webrtc"
	KindTLS    Kind = "tls"
	KindTCP    Kind = "tcp"
)

// MaxCorrelationIDLen bounds correlation ids at the store boundary.
const MaxCorrelationIDLen = 128

// Entry is the buffered state for one correlation id. One entry per id;
// parts holds the latest payload per kind (last writer wins per kind).
type Entry struct {
	LastTouchedAt int64                    `json:"ts"` // unix millis
	Parts         map[Kind]json.RawMessage `json:"parts"`
	PerKindTS     map[Kind]int64           `json:"tsByKind"`
	ReadCount     int                      `json:"readCount"`
}

// DebugSample is one row of the bounded debug listing.
type DebugSample struct {
	CorrelationID string   `json:"correlationId"`
	Kinds         []string `json:"kinds"`
	IdleMs        int64    `json:"idleMs"`
	ReadCount     int      `json:"readCount"`
}

// DebugStats summarizes buffer state for the debug endpoint.
type DebugStats struct {
	Backend kvstore.Stats `json:"backend"`
	Alive   int           `json:"alive"`
	Expired int           `json:"expired"`
	Sample  []DebugSample `json:"sample,omitempty"`
}

// WaitOptions tunes Wait polling.
type WaitOptions struct {
	Step    time.Duration
	Timeout time.Duration
}

// DefaultWaitOptions matches the collector's submit path: short steps, a
// bounded overall wait, partial results on timeout.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Step: 120 * time.Millisecond, Timeout: 8 * time.Second}
}

const debugSampleCap = 100

// Store is the correlation chunk buffer over a key/value backend. The
// backend choice (local or shared) is fixed for the process lifetime.
type Store struct {
	backend kvstore.Backend
	ttl     time.Duration
}

// New creates a Store with the given per-entry TTL.
func New(backend kvstore.Backend, ttl time.Duration) (*Store, error) {
	if backend == nil {
		return nil, errors.WrapInvalid(nil, "Store", "New", "backend is required")
	}
	if ttl <= 0 {
		return nil, errors.WrapInvalid(nil, "Store", "New", "ttl must be positive")
	}
	return &Store{backend: backend, ttl: ttl}, nil
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Shared reports whether the underlying backend is shared across nodes.
func (s *Store) Shared() bool { return s.backend.Shared() }

// key namespaces and encodes a correlation id so it is always a valid
// backend key regardless of the characters the client chose.
func key(corrID string) string {
	return "c." + base64.RawURLEncoding.EncodeToString([]byte(corrID))
}

func validateCorrID(corrID string) error {
	if corrID == "" {
		return errors.WrapInvalid(nil, "Store", "validate", "correlation id is empty")
	}
	if len(corrID) > MaxCorrelationIDLen {
		return errors.WrapInvalid(nil, "Store", "validate", "correlation id exceeds 128 chars")
	}
	return nil
}

// Add upserts payload under parts[kind] for corrID and refreshes the
// entry's lifetime to the full TTL window. Returns the post-write part
// count. Concurrent adds for the same id never lose a kind.
func (s *Store) Add(ctx context.Context, corrID string, kind Kind, payload json.RawMessage) (int, error) {
	if err := validateCorrID(corrID); err != nil {
		return 0, err
	}
	if kind == "" {
		return 0, errors.WrapInvalid(nil, "Store", "Add", "kind is empty")
	}

	now := time.Now().UnixMilli()
	var partCount int

	err := s.backend.Update(ctx, key(corrID), s.ttl, func(current []byte) ([]byte, error) {
		entry := Entry{
			Parts:     make(map[Kind]json.RawMessage),
			PerKindTS: make(map[Kind]int64),
		}
		if current != nil {
			if err := json.Unmarshal(current, &entry); err != nil {
				// Corrupt entry: start over rather than wedge the id.
				entry = Entry{
					Parts:     make(map[Kind]json.RawMessage),
					PerKindTS: make(map[Kind]int64),
				}
			}
		}

		entry.Parts[kind] = payload
		entry.PerKindTS[kind] = now
		entry.LastTouchedAt = now
		partCount = len(entry.Parts)

		return json.Marshal(entry)
	})
	if err != nil {
		return 0, errors.Wrap(err, "Store", "Add", "upsert chunk entry")
	}

	return partCount, nil
}

// Peek is the lease read: it returns a defensive copy of the current
// parts map without consuming the entry. The only mutation is the
// internal read counter. Returns ErrKeyNotFound when no entry exists or
// the entry's age exceeds the TTL.
func (s *Store) Peek(ctx context.Context, corrID string) (map[Kind]json.RawMessage, error) {
	if err := validateCorrID(corrID); err != nil {
		return nil, err
	}

	var parts map[Kind]json.RawMessage
	found := false

	err := s.backend.Update(ctx, key(corrID), s.ttl, func(current []byte) ([]byte, error) {
		parts, found = nil, false
		if current == nil {
			return nil, nil
		}

		var entry Entry
		if err := json.Unmarshal(current, &entry); err != nil {
			return nil, nil // corrupt entry: drop it
		}

		// On-read expiry: a stale entry is invisible even before the
		// backend sweep fires.
		if time.Since(time.UnixMilli(entry.LastTouchedAt)) > s.ttl {
			return nil, nil
		}

		parts = make(map[Kind]json.RawMessage, len(entry.Parts))
		for k, v := range entry.Parts {
			cp := make(json.RawMessage, len(v))
			copy(cp, v)
			parts[k] = cp
		}
		found = true

		entry.ReadCount++
		return json.Marshal(entry)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Store", "Peek", "read chunk entry")
	}
	if !found {
		return nil, errors.WrapNotFound(errors.ErrKeyNotFound, "Store", "Peek", corrID)
	}

	return parts, nil
}

// Take returns the buffered parts for corrID. It is an alias of Peek and
// is explicitly not destructive; the name survives for call-site clarity
// at the submit path.
func (s *Store) Take(ctx context.Context, corrID string) (map[Kind]json.RawMessage, error) {
	return s.Peek(ctx, corrID)
}

// Purge removes the entry for corrID. This is the only way, besides TTL
// expiry, that an entry disappears.
func (s *Store) Purge(ctx context.Context, corrID string) error {
	if err := validateCorrID(corrID); err != nil {
		return err
	}
	return s.backend.Delete(ctx, key(corrID))
}

// Wait polls until every wanted kind is buffered for corrID, or the
// timeout elapses. It returns whatever subset is present; partial
// readiness is never an error.
func (s *Store) Wait(ctx context.Context, corrID string, wanted []Kind, opts WaitOptions) (map[Kind]json.RawMessage, error) {
	if err := validateCorrID(corrID); err != nil {
		return nil, err
	}
	if opts.Step <= 0 {
		opts.Step = DefaultWaitOptions().Step
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWaitOptions().Timeout
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		parts, err := s.Peek(ctx, corrID)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
		if err == nil {
			ready := 0
			for _, k := range wanted {
				if _, ok := parts[k]; ok {
					ready++
				}
			}
			if ready == len(wanted) {
				return parts, nil
			}
		}

		if time.Now().After(deadline) {
			if parts == nil {
				parts = map[Kind]json.RawMessage{}
			}
			return parts, nil
		}

		timer := time.NewTimer(opts.Step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.WrapTransient(ctx.Err(), "Store", "Wait", "polling cancelled")
		case <-timer.C:
		}
	}
}

// Stats returns buffer statistics. For the local backend it enumerates
// entries and includes a bounded sample; for the shared backend it
// reports only bucket metadata, never a key scan.
func (s *Store) Stats(ctx context.Context) (DebugStats, error) {
	backendStats, err := s.backend.Stats(ctx)
	if err != nil {
		return DebugStats{}, errors.Wrap(err, "Store", "Stats", "backend stats")
	}

	out := DebugStats{Backend: backendStats}
	if s.backend.Shared() {
		return out, nil
	}

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return out, errors.Wrap(err, "Store", "Stats", "enumerate keys")
	}

	now := time.Now()
	for _, k := range keys {
		raw, err := s.backend.Get(ctx, k)
		if err != nil {
			continue // expired between listing and read
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}

		idle := now.Sub(time.UnixMilli(entry.LastTouchedAt))
		if idle > s.ttl {
			out.Expired++
			continue
		}
		out.Alive++

		if len(out.Sample) < debugSampleCap {
			kinds := make([]string, 0, len(entry.Parts))
			for kind := range entry.Parts {
				kinds = append(kinds, string(kind))
			}
			out.Sample = append(out.Sample, DebugSample{
				CorrelationID: decodeKey(k),
				Kinds:         kinds,
				IdleMs:        idle.Milliseconds(),
				ReadCount:     entry.ReadCount,
			})
		}
	}

	return out, nil
}

func decodeKey(k string) string {
	if len(k) > 2 && k[:2] == "c." {
		if raw, err := base64.RawURLEncoding.DecodeString(k[2:]); err == nil {
			return string(raw)
		}
	}
	return k
}
