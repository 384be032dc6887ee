// Package chunkstore buffers partial sensor observations (chunks) per
// correlation id until the client submits its payload. Entries live in a
// key/value backend with a sliding TTL: every write refreshes the
// lifetime, reads never consume. Expiry is enforced on read against the
// entry's own last-touch timestamp, so a stale entry is invisible even
// before the backend sweep removes it.
package chunkstore
