// Package fingercloak is the root of the fingercloak API module, a
// browser fingerprint correlation and snapshot service. Sensors (edge
// workers, DNS log watchers, WebRTC probes, TLS terminators, passive
// TCP observers) post short-lived chunks keyed by a correlation id;
// the collector submission merges whatever chunks arrived into an
// immutable snapshot with stable and content identity digests.
//
// The interesting packages:
//
//   - chunkstore: TTL-bounded correlation buffer with lease reads
//   - kvstore: pluggable backend (in-memory or NATS JetStream KV)
//   - snapshot: raw payload normalization and the snapshot model
//   - identity: canonical JSON digests and hamming distance
//   - fingerprint: snapshot assembly, session views and comparison
//   - ingest: typed, clamped sensor boundary
//   - httpapi: the chi HTTP surface
package fingercloak
