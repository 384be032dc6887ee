package kvstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
)

func newTestMemory(t *testing.T, ttl time.Duration) *Memory {
	t.Helper()
	m := NewMemory(ttl, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func TestMemorySetGet(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryGetMissing(t *testing.T) {
	m := newTestMemory(t, time.Minute)

	_, err := m.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryExpiryOnRead(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	assert.True(t, errors.IsNotFound(err))

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Keys)
}

func TestMemorySlidingTTL(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), 40*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	// Rewriting resets the deadline.
	require.NoError(t, m.Set(ctx, "k", []byte("v2"), 40*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("abc"), 0))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryUpdateCreatesAndMutates(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	err := m.Update(ctx, "k", 0, func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte("1"), nil
	})
	require.NoError(t, err)

	err = m.Update(ctx, "k", 0, func(current []byte) ([]byte, error) {
		assert.Equal(t, []byte("1"), current)
		return []byte("2"), nil
	})
	require.NoError(t, err)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestMemoryUpdateNilDeletes(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Update(ctx, "k", 0, func([]byte) ([]byte, error) {
		return nil, nil
	}))

	_, err := m.Get(ctx, "k")
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryConcurrentUpdatesLoseNothing(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := m.Update(ctx, "counter", 0, func(current []byte) ([]byte, error) {
					var n int
					if current != nil {
						if err := json.Unmarshal(current, &n); err != nil {
							return nil, err
						}
					}
					return json.Marshal(n + 1)
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, "counter")
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(got, &n))
	assert.Equal(t, writers*perWriter, n)
}

func TestMemorySweepEvictCallback(t *testing.T) {
	var mu sync.Mutex
	var evicted []string

	m := NewMemory(20*time.Millisecond, func(key string) {
		mu.Lock()
		evicted = append(evicted, key)
		mu.Unlock()
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	}()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))

	// Sweep interval equals the TTL here; wait for two cycles.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryKeysSkipsExpired(t *testing.T) {
	m := newTestMemory(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "live", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "dead", []byte("2"), 5*time.Millisecond))
	time.Sleep(15 * time.Millisecond)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, keys)
}

func TestNewSelectsMemoryWithoutURL(t *testing.T) {
	b, err := New(context.Background(), Config{DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Close(ctx)
	}()

	assert.False(t, b.Shared())
	st, err := b.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Mode)
}

func TestNewRejectsZeroTTL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
