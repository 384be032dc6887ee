package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
)

// memEntry holds a value with its expiry deadline.
type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// Memory is the process-local backend. Expired entries are removed both
// on read and by a background sweep so a buffer that stops receiving
// reads still releases memory.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]*memEntry
	defaultTTL time.Duration
	onEvict    func(key string)

	shutdown chan struct{}
	done     chan struct{}
	closeOne sync.Once
}

// NewMemory creates an in-memory backend. The sweep interval is the
// smaller of the TTL and five seconds.
func NewMemory(defaultTTL time.Duration, onEvict func(key string)) *Memory {
	m := &Memory{
		items:      make(map[string]*memEntry),
		defaultTTL: defaultTTL,
		onEvict:    onEvict,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	interval := defaultTTL
	if interval > 5*time.Second {
		interval = 5 * time.Second
	}
	go m.sweep(interval)

	return m
}

// Get returns the value for key, removing it first if it has expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, exists := m.items[key]
	m.mu.RUnlock()

	if !exists {
		return nil, errors.WrapNotFound(errors.ErrKeyNotFound, "Memory", "Get", key)
	}

	if entry.isExpired() {
		m.mu.Lock()
		// Double-check it's still there and still expired
		if current, stillThere := m.items[key]; stillThere && current.isExpired() {
			delete(m.items, key)
			if m.onEvict != nil {
				defer m.onEvict(key)
			}
		}
		m.mu.Unlock()
		return nil, errors.WrapNotFound(errors.ErrKeyNotFound, "Memory", "Get", key)
	}

	// Defensive copy so callers cannot mutate stored bytes.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key, resetting its expiry deadline.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.items[key] = &memEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Update applies fn to the current value under the write lock, so
// concurrent updates to the same key serialize and no write is lost.
func (m *Memory) Update(_ context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if entry, exists := m.items[key]; exists && !entry.isExpired() {
		current = entry.value
	}

	next, err := fn(current)
	if err != nil {
		return errors.WrapInvalid(err, "Memory", "Update", "apply update function")
	}

	if next == nil {
		delete(m.items, key)
		return nil
	}

	m.items[key] = &memEntry{value: next, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes key. Absent keys are ignored.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Keys lists all non-expired keys.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	now := time.Now()
	for key, entry := range m.items {
		if now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Shared reports false: this backend is process-local.
func (m *Memory) Shared() bool { return false }

// Stats returns the live key count.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	n := len(m.items)
	m.mu.RUnlock()
	return Stats{Mode: "memory", Keys: n, Healthy: true}, nil
}

// Close stops the background sweep.
func (m *Memory) Close(_ context.Context) error {
	m.closeOne.Do(func() { close(m.shutdown) })

	select {
	case <-m.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(nil, "Memory", "Close", "timeout waiting for sweep goroutine")
	}
}

// sweep periodically removes expired entries.
func (m *Memory) sweep(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	now := time.Now()
	var expired []string

	m.mu.Lock()
	for key, entry := range m.items {
		if now.After(entry.expiresAt) {
			expired = append(expired, key)
			delete(m.items, key)
		}
	}
	m.mu.Unlock()

	// Eviction callbacks run outside the lock.
	if m.onEvict != nil {
		for _, key := range expired {
			m.onEvict(key)
		}
	}
}
