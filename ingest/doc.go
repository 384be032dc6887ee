// Package ingest is the typed sensor boundary. Each chunk kind (edge,
// dns, webrtc, tls, tcp) has its own payload shape, validated and
// clamped here exactly once; only typed, size-bounded values reach the
// correlation buffer. Edge and TLS submissions optionally carry an
// HMAC-SHA256 signature; an unset shared secret accepts everything,
// which keeps local setups working.
package ingest
