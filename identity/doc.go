// Package identity derives the two fingerprint digests from a normalized
// snapshot. Both hash deliberately curated field subsets, never the
// whole snapshot, so volatile fields cannot perturb identity. The stable
// id covers only hardware/engine traits expected constant across reloads
// on one device; the content hash covers a broader volatility-filtered
// core. Serialization is canonical: object keys sorted, arrays treated
// as unordered multisets.
package identity
