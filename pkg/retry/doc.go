// Package retry provides exponential backoff retry logic used by the
// shared key/value backend for CAS upsert loops and connection attempts.
package retry
