package snapstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

// DefaultTTL keeps snapshots for a day; much longer than the chunk TTL.
const DefaultTTL = 24 * time.Hour

const (
	sweepInterval = time.Minute
	searchWindow  = 5000
	maxLimit      = 200
	defaultLimit  = 50
)

// Query filters Search. Zero From/To leave that bound open; Limit is
// clamped to 200 and defaults to 50.
type Query struct {
	From  int64 // unix millis, inclusive
	To    int64 // unix millis, inclusive
	Band  string
	UA    string
	Page  string
	Limit int
}

// Projection is the pruned list form of a snapshot.
type Projection struct {
	ID     string        `json:"id"`
	TS     int64         `json:"ts"`
	UA     string        `json:"ua"`
	Origin string        `json:"origin,omitempty"`
	Meta   snapshot.Meta `json:"meta"`
	Env    struct {
		UA        string   `json:"ua,omitempty"`
		Languages []string `json:"languages,omitempty"`
		Platform  string   `json:"platform,omitempty"`
	} `json:"env"`
	Screen struct {
		DPR        *float64 `json:"dpr,omitempty"`
		ColorDepth *int     `json:"colorDepth,omitempty"`
	} `json:"screen"`
	WebGL struct {
		Renderer string `json:"renderer,omitempty"`
	} `json:"webgl"`
	WebGL2 struct {
		Renderer string `json:"renderer,omitempty"`
	} `json:"webgl2"`
	WebGPU struct {
		Supported bool `json:"supported"`
	} `json:"webgpu"`
	StableID    string          `json:"stableId"`
	ContentHash string          `json:"contentHash"`
	Scores      snapshot.Scores `json:"scores"`
}

// Stats are the repository aggregates.
type Stats struct {
	Total int            `json:"total"`
	Last  int64          `json:"last,omitempty"`
	Bands map[string]int `json:"bands"`
}

type tsRec struct {
	ts int64
	id string
}

// Store is the in-memory snapshot repository.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*snapshot.Snapshot
	byCorr  map[string][]string
	indexTS []tsRec
	ttl     time.Duration

	journalMu sync.Mutex
	journal   *os.File

	onEvict func()

	shutdown chan struct{}
	done     chan struct{}
	closeOne sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the snapshot lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithEvictionHook registers fn to run once per snapshot removed by the
// retention sweep. Called outside the store lock.
func WithEvictionHook(fn func()) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// New creates a Store. A non-empty writeDir enables the JSONL journal at
// writeDir/snapshots.jsonl; a journal that cannot be opened is reported
// but the store still works memory-only.
func New(writeDir string, opts ...Option) (*Store, error) {
	s := &Store{
		byID:     make(map[string]*snapshot.Snapshot),
		byCorr:   make(map[string][]string),
		ttl:      DefaultTTL,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var journalErr error
	if writeDir != "" {
		if err := os.MkdirAll(writeDir, 0o755); err != nil {
			journalErr = errors.WrapTransient(err, "Store", "New", "create journal dir")
		} else {
			f, err := os.OpenFile(filepath.Join(writeDir, "snapshots.jsonl"),
				os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				journalErr = errors.WrapTransient(err, "Store", "New", "open journal")
			} else {
				s.journal = f
			}
		}
	}

	go s.sweep()

	return s, journalErr
}

// Save persists a snapshot, assigning id and timestamp when absent, and
// returns the stored value. The store owns the snapshot afterwards.
func (s *Store) Save(snap *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if snap == nil {
		return nil, errors.WrapInvalid(nil, "Store", "Save", "snapshot is nil")
	}

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.TS == 0 {
		snap.TS = time.Now().UnixMilli()
	}

	s.mu.Lock()
	s.byID[snap.ID] = snap
	s.indexTS = append(s.indexTS, tsRec{ts: snap.TS, id: snap.ID})
	if snap.CorrelationID != "" {
		s.byCorr[snap.CorrelationID] = append(s.byCorr[snap.CorrelationID], snap.ID)
	}
	s.mu.Unlock()

	s.appendJournal(snap)

	return snap, nil
}

func (s *Store) appendJournal(snap *snapshot.Snapshot) {
	if s.journal == nil {
		return
	}
	line, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.journalMu.Lock()
	_, _ = s.journal.Write(append(line, '\n'))
	s.journalMu.Unlock()
}

// GetByID returns the snapshot for id, or ErrSnapshotMissing.
func (s *Store) GetByID(id string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.WrapNotFound(errors.ErrSnapshotMissing, "Store", "GetByID", id)
	}
	return snap, nil
}

// GetByCorrelation returns all snapshots sharing a correlation id,
// oldest first. An unknown id yields an empty slice, not an error.
func (s *Store) GetByCorrelation(corrID string) []*snapshot.Snapshot {
	if corrID == "" {
		return nil
	}

	s.mu.RLock()
	ids := s.byCorr[corrID]
	out := make([]*snapshot.Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := s.byID[id]; ok {
			out = append(out, snap)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}

// Search scans the most recent window of the time index newest-first and
// returns pruned projections matching the query.
func (s *Store) Search(q Query) []Projection {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	to := q.To
	if to == 0 {
		to = time.Now().UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var window []tsRec
	for _, r := range s.indexTS {
		if r.ts >= q.From && r.ts <= to {
			window = append(window, r)
		}
	}
	if len(window) > searchWindow {
		window = window[len(window)-searchWindow:]
	}

	out := make([]Projection, 0, limit)
	for i := len(window) - 1; i >= 0 && len(out) < limit; i-- {
		snap, ok := s.byID[window[i].id]
		if !ok {
			continue
		}
		if q.Band != "" && snap.Derived.Scores.Band != q.Band {
			continue
		}
		if q.UA != "" {
			ua := snap.Env.UA
			if ua == "" {
				ua = snap.UA
			}
			if !strings.Contains(strings.ToLower(ua), strings.ToLower(q.UA)) {
				continue
			}
		}
		if q.Page != "" && snap.Meta.Page != q.Page {
			continue
		}
		out = append(out, prune(snap))
	}
	return out
}

func prune(snap *snapshot.Snapshot) Projection {
	p := Projection{
		ID:          snap.ID,
		TS:          snap.TS,
		UA:          snap.UA,
		Origin:      snap.Origin,
		Meta:        snap.Meta,
		StableID:    snap.StableID,
		ContentHash: snap.ContentHash,
		Scores:      snap.Derived.Scores,
	}
	p.Env.UA = snap.Env.UA
	p.Env.Languages = snap.Env.Languages
	p.Env.Platform = snap.Env.Platform
	p.Screen.DPR = snap.Screen.DPR
	p.Screen.ColorDepth = snap.Screen.ColorDepth
	p.WebGL.Renderer = snap.WebGL.Renderer
	p.WebGL2.Renderer = snap.WebGL2.Renderer
	p.WebGPU.Supported = snap.WebGPU.Supported
	return p
}

// Stats returns totals and per-band counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Total: len(s.byID),
		Bands: map[string]int{snapshot.BandLow: 0, snapshot.BandMedium: 0, snapshot.BandHigh: 0},
	}
	if len(s.indexTS) > 0 {
		st.Last = s.indexTS[len(s.indexTS)-1].ts
	}
	for _, snap := range s.byID {
		if _, ok := st.Bands[snap.Derived.Scores.Band]; ok {
			st.Bands[snap.Derived.Scores.Band]++
		}
	}
	return st
}

// Close stops the sweep and closes the journal.
func (s *Store) Close(_ context.Context) error {
	s.closeOne.Do(func() { close(s.shutdown) })

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(nil, "Store", "Close", "timeout waiting for sweep")
	}

	if s.journal != nil {
		s.journalMu.Lock()
		defer s.journalMu.Unlock()
		return s.journal.Close()
	}
	return nil
}

func (s *Store) sweep() {
	defer close(s.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.gc()
		}
	}
}

// gc removes snapshots past their TTL and compacts the indexes.
func (s *Store) gc() {
	now := time.Now().UnixMilli()

	s.mu.Lock()

	evicted := 0
	for id, snap := range s.byID {
		if now-snap.TS > s.ttl.Milliseconds() {
			delete(s.byID, id)
			evicted++
		}
	}

	kept := s.indexTS[:0]
	for _, r := range s.indexTS {
		if _, ok := s.byID[r.id]; ok {
			kept = append(kept, r)
		}
	}
	s.indexTS = kept

	for corr, ids := range s.byCorr {
		live := ids[:0]
		for _, id := range ids {
			if _, ok := s.byID[id]; ok {
				live = append(live, id)
			}
		}
		if len(live) == 0 {
			delete(s.byCorr, corr)
		} else {
			s.byCorr[corr] = live
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for i := 0; i < evicted; i++ {
			s.onEvict()
		}
	}
}
