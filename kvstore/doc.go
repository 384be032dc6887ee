// Package kvstore provides the key/value backend behind the correlation
// chunk buffer. Two implementations exist: a process-local in-memory map
// with TTL eviction, and a shared NATS JetStream KV bucket for multi-node
// deployments. Both expose the same Backend interface with atomic per-key
// read-modify-write updates.
package kvstore
