package kvstore

import (
	"context"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/natsclient"
)

// Backend is the key/value abstraction the chunk buffer is written
// against. Values are opaque byte slices (JSON documents in practice).
type Backend interface {
	// Get returns the value for key. Returns errors.ErrKeyNotFound when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// the backend default applies.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update performs an atomic read-modify-write on key. The update
	// function receives the current value (nil when absent) and returns
	// the replacement. Returning nil deletes the key. Concurrent updates
	// to the same key never lose writes.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists live keys. For shared backends this may be expensive
	// and is intended for debug surfaces only.
	Keys(ctx context.Context) ([]string, error)

	// Shared reports whether the backend is visible to other processes.
	Shared() bool

	// Stats returns backend metadata for the debug endpoint.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Stats describes a backend for the debug endpoint. Shared backends
// report only static metadata; key enumeration stays cheap.
type Stats struct {
	Mode    string `json:"mode"` // "memory" or "shared"
	Keys    int    `json:"keys,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Healthy bool   `json:"healthy"`
}

// Config selects and tunes the backend.
type Config struct {
	NATSURL    string        // empty selects the in-memory backend
	Bucket     string        // KV bucket name for the shared backend
	DefaultTTL time.Duration // per-entry lifetime
	Logger     natsclient.Logger
	OnEvict    func(key string) // invoked when an entry expires (memory backend)
}

// New selects a backend from config. An empty NATS URL yields the local
// in-memory backend. A NATS URL that cannot be reached degrades to the
// in-memory backend rather than failing startup.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.DefaultTTL <= 0 {
		return nil, errors.WrapInvalid(nil, "kvstore", "New", "DefaultTTL must be positive")
	}

	if cfg.NATSURL == "" {
		return NewMemory(cfg.DefaultTTL, cfg.OnEvict), nil
	}

	shared, err := NewNATS(ctx, cfg)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Errorf("shared backend unavailable, degrading to memory: %v", err)
		}
		return NewMemory(cfg.DefaultTTL, cfg.OnEvict), nil
	}
	return shared, nil
}
