// Package natsclient manages the NATS connection used for the shared
// key/value backend. It provides connection lifecycle with a circuit
// breaker, JetStream KV bucket creation with native TTL, and a KVStore
// wrapper with CAS (compare-and-swap) update support for atomic per-key
// read-modify-write operations.
package natsclient
