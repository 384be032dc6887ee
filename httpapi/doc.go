// Package httpapi is the HTTP boundary: a chi router over the
// fingerprint service and the ingest handler. It owns CORS, the
// per-IP ingest rate limit, body size caps, correlation-id extraction
// and the mapping from classified errors to HTTP status codes.
package httpapi
