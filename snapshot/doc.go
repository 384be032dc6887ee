// Package snapshot defines the fingerprint data model: the loosely typed
// raw payload a collector submits, the normalized snapshot derived from
// it, and the normalization pass itself. Normalization quantizes
// numbers, sorts and dedupes lists, caps string and list sizes, and
// computes derived realism scores and consistency flags. Raw IPs never
// enter the model; only a salted digest is stored.
package snapshot
