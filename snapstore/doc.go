// Package snapstore keeps assembled snapshots indexed by id and by
// correlation id, with TTL eviction independent from the chunk buffer's
// TTL. Retrieval is bounded: search scans only a recent window of the
// time index. An optional JSONL journal appends every saved snapshot for
// offline analysis; journal failures never fail a save.
package snapstore
