// Package config loads service configuration from JSON files with
// environment variable overrides (FINGERCLOAK_*). Configuration is
// immutable after start; there is no runtime reload.
package config
