// Package fingerprint is the domain service tying the pieces together:
// it assembles submitted payloads with whatever sensor chunks are
// buffered for their correlation id, derives the identity digests,
// persists snapshots, and compares saved snapshots for similarity.
package fingerprint
