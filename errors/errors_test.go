package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassTransient, "transient"},
		{ClassInvalid, "invalid"},
		{ClassNotFound, "not_found"},
		{ClassFatal, "fatal"},
		{Class(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.class.String())
	}
}

func TestWrapHelpers(t *testing.T) {
	base := stderrors.New("boom")

	t.Run("wrap formats component context", func(t *testing.T) {
		err := Wrap(base, "chunkstore", "AddChunk", "backend write")
		require.Error(t, err)
		assert.Equal(t, "chunkstore.AddChunk: backend write failed: boom", err.Error())
		assert.True(t, stderrors.Is(err, base))
	})

	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "c", "m", "a"))
		assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
	})

	t.Run("classified wrappers preserve chain", func(t *testing.T) {
		err := WrapTransient(base, "kvstore", "Set", "put value")
		assert.True(t, IsTransient(err))
		assert.True(t, stderrors.Is(err, base))

		var ce *ClassifiedError
		require.True(t, stderrors.As(err, &ce))
		assert.Equal(t, "kvstore", ce.Component)
		assert.Equal(t, "Set", ce.Operation)
	})

	t.Run("nil defaults to sentinel", func(t *testing.T) {
		err := WrapInvalid(nil, "chunkstore", "AddChunk", "corrId required")
		assert.True(t, stderrors.Is(err, ErrInvalidArgument))

		err = WrapNotFound(nil, "fingerprint", "Compare", "snapshot lookup")
		assert.True(t, stderrors.Is(err, ErrNotFound))
	})
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"invalid sentinel", ErrInvalidArgument, ClassInvalid},
		{"payload sentinel", fmt.Errorf("ingest: %w", ErrPayloadTooLarge), ClassInvalid},
		{"not found sentinel", ErrSnapshotMissing, ClassNotFound},
		{"backend sentinel", ErrBackendUnavailable, ClassTransient},
		{"context deadline", context.DeadlineExceeded, ClassTransient},
		{"timeout by message", stderrors.New("dial tcp: i/o timeout"), ClassTransient},
		{"unknown defaults transient", stderrors.New("mystery"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifiedOverridesSentinel(t *testing.T) {
	// An explicitly classified error wins over message sniffing.
	err := WrapFatal(stderrors.New("connection lost"), "snapstore", "Save", "journal write")
	assert.True(t, IsFatal(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, ClassFatal, Classify(err))
}

func TestNilChecks(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsFatal(nil))
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.True(t, rc.ShouldRetry(ErrBackendUnavailable, 0))
	assert.False(t, rc.ShouldRetry(ErrBackendUnavailable, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(ErrInvalidArgument, 0))
	assert.False(t, rc.ShouldRetry(nil, 0))

	cfg := rc.ToRetryConfig()
	assert.Equal(t, rc.MaxRetries+1, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.True(t, cfg.AddJitter)
}
