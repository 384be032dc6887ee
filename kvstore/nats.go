package kvstore

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/natsclient"
)

// NATS is the shared backend over a JetStream KV bucket. Entry lifetime
// comes from the bucket's native TTL; writing a new revision of a key
// refreshes its age, which gives the sliding-TTL behavior the chunk
// buffer relies on. Atomicity comes from CAS updates with retry.
type NATS struct {
	client *natsclient.Client
	kv     *natsclient.KVStore
	bucket string
}

// NewNATS connects to NATS and ensures the KV bucket exists with the
// configured TTL.
func NewNATS(ctx context.Context, cfg Config) (*NATS, error) {
	opts := []natsclient.ClientOption{natsclient.WithName("fingercloak-kvstore")}
	if cfg.Logger != nil {
		opts = append(opts, natsclient.WithLogger(cfg.Logger))
	}

	client, err := natsclient.NewClient(cfg.NATSURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	bucketName := cfg.Bucket
	if bucketName == "" {
		bucketName = "fingercloak-chunks"
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "correlation chunk buffer",
		TTL:         cfg.DefaultTTL,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
		return nil, errors.WrapTransient(err, "NATS", "NewNATS", "create chunk bucket")
	}

	return &NATS{
		client: client,
		kv:     client.NewKVStore(bucket),
		bucket: bucketName,
	}, nil
}

// Get returns the value for key.
func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.kv.Get(ctx, key)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapNotFound(errors.ErrKeyNotFound, "NATS", "Get", key)
		}
		return nil, errors.WrapTransient(err, "NATS", "Get", key)
	}
	return entry.Value, nil
}

// Set stores value under key. The per-call TTL is ignored: entry
// lifetime is the bucket TTL, refreshed by each write.
func (n *NATS) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return errors.WrapTransient(err, "NATS", "Set", key)
	}
	return nil
}

// Update performs a CAS read-modify-write with retry on conflicts.
func (n *NATS) Update(ctx context.Context, key string, _ time.Duration, fn func(current []byte) ([]byte, error)) error {
	err := n.kv.UpdateWithRetry(ctx, key, fn)
	if err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapTransient(errors.ErrMaxRetriesExceeded, "NATS", "Update", key)
		}
		return err
	}
	return nil
}

// Delete removes key. Absent keys are ignored.
func (n *NATS) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !natsclient.IsKVNotFoundError(err) {
		return errors.WrapTransient(err, "NATS", "Delete", key)
	}
	return nil
}

// Keys lists keys in the bucket.
func (n *NATS) Keys(ctx context.Context) ([]string, error) {
	keys, err := n.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATS", "Keys", "list bucket keys")
	}
	return keys, nil
}

// Shared reports true: the bucket is visible to every node.
func (n *NATS) Shared() bool { return true }

// Stats reports bucket metadata without enumerating entries.
func (n *NATS) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Mode: "shared", Bucket: n.bucket, Healthy: n.client.IsHealthy()}
	status, err := n.kv.Status(ctx)
	if err == nil {
		s.Keys = int(status.Values())
	}
	return s, nil
}

// Close drains the NATS connection.
func (n *NATS) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}
