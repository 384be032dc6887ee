package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
)

// Config represents the complete service configuration.
type Config struct {
	Chunks    ChunksConfig    `json:"chunks"`
	Snapshots SnapshotsConfig `json:"snapshots"`
	NATS      NATSConfig      `json:"nats"`
	HTTP      HTTPConfig      `json:"http"`
	Ingest    IngestConfig    `json:"ingest"`
	Identity  IdentityConfig  `json:"identity"`
	Collect   CollectConfig   `json:"collect"`
}

// ChunksConfig tunes the correlation buffer.
type ChunksConfig struct {
	TTLMs  int    `json:"ttl_ms"`
	Bucket string `json:"bucket,omitempty"`
}

// TTL returns the chunk TTL as a duration.
func (c ChunksConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// SnapshotsConfig tunes the snapshot repository.
type SnapshotsConfig struct {
	TTL      time.Duration `json:"ttl"`
	WriteDir string        `json:"write_dir,omitempty"` // empty disables the JSONL journal
}

// NATSConfig selects the shared backend. An empty URL selects the
// process-local in-memory backend.
type NATSConfig struct {
	URL string `json:"url,omitempty"`
}

// HTTPConfig defines the HTTP boundary.
type HTTPConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	MaxBodyBytes   int64    `json:"max_body_bytes"`
}

// IngestConfig holds sensor shared secrets and per-kind body caps.
type IngestConfig struct {
	EdgeSecret string `json:"edge_secret,omitempty"`
	TLSSecret  string `json:"tls_secret,omitempty"` // empty falls back to the edge secret

	MaxBytes struct {
		Edge   int64 `json:"edge"`
		TLS    int64 `json:"tls"`
		DNS    int64 `json:"dns"`
		WebRTC int64 `json:"webrtc"`
		TCP    int64 `json:"tcp"`
	} `json:"max_bytes"`
}

// IdentityConfig holds hashing material.
type IdentityConfig struct {
	IPHMACSalt string `json:"ip_hmac_salt"`
}

// CollectConfig holds server-side defaults for the collect wait.
type CollectConfig struct {
	WaitFor   string `json:"wait_for,omitempty"` // comma-separated chunk kinds
	TimeoutMs int    `json:"timeout_ms"`
}

// Loader handles configuration loading with file layers and env
// overrides.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader with the FINGERCLOAK env prefix and
// validation enabled.
func NewLoader() *Loader {
	return &Loader{envPrefix: "FINGERCLOAK", validation: true}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation on Load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, file layers and env overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read %s", path))
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("parse %s", path))
		}
	}

	l.applyEnvOverrides(cfg)

	if cfg.Ingest.TLSSecret == "" {
		cfg.Ingest.TLSSecret = cfg.Ingest.EdgeSecret
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg := &Config{
		Chunks: ChunksConfig{
			TTLMs:  15000,
			Bucket: "fingercloak-chunks",
		},
		Snapshots: SnapshotsConfig{
			TTL: 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Addr: ":3000",
			AllowedOrigins: []string{
				"https://fingercloak.com",
				"https://www.fingercloak.com",
			},
			MaxBodyBytes: 2 << 20,
		},
		Identity: IdentityConfig{
			IPHMACSalt: "dev-salt",
		},
		Collect: CollectConfig{
			TimeoutMs: 8000,
		},
	}
	cfg.Ingest.MaxBytes.Edge = 256 << 10
	cfg.Ingest.MaxBytes.TLS = 256 << 10
	cfg.Ingest.MaxBytes.DNS = 512 << 10
	cfg.Ingest.MaxBytes.WebRTC = 512 << 10
	cfg.Ingest.MaxBytes.TCP = 64 << 10
	return cfg
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	env := func(key string) string {
		return os.Getenv(l.envPrefix + "_" + key)
	}

	if val := env("CHUNKS_TTL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Chunks.TTLMs = n
		}
	}
	if val := env("SNAPSHOT_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Snapshots.TTL = d
		}
	}
	if val := env("NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := env("HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := env("ALLOWED_ORIGINS"); val != "" {
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.AllowedOrigins = origins
	}
	if val := env("EDGE_SECRET"); val != "" {
		cfg.Ingest.EdgeSecret = val
	}
	if val := env("TLS_SECRET"); val != "" {
		cfg.Ingest.TLSSecret = val
	}
	if val := env("IP_HMAC_SALT"); val != "" {
		cfg.Identity.IPHMACSalt = val
	}
	if val := env("WRITE_DIR"); val != "" {
		cfg.Snapshots.WriteDir = val
	}
	if val := env("COLLECT_WAIT_FOR"); val != "" {
		cfg.Collect.WaitFor = val
	}
	if val := env("COLLECT_TIMEOUT_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Collect.TimeoutMs = n
		}
	}
}

// Validate checks the configuration for values the service cannot run
// with.
func (c *Config) Validate() error {
	if c.Chunks.TTLMs <= 0 {
		return errors.WrapInvalid(nil, "Config", "Validate", "chunks.ttl_ms must be positive")
	}
	if c.Snapshots.TTL <= 0 {
		return errors.WrapInvalid(nil, "Config", "Validate", "snapshots.ttl must be positive")
	}
	if c.HTTP.Addr == "" {
		return errors.WrapInvalid(nil, "Config", "Validate", "http.addr is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.WrapInvalid(nil, "Config", "Validate", "http.max_body_bytes must be positive")
	}
	if c.Collect.TimeoutMs < 0 {
		return errors.WrapInvalid(nil, "Config", "Validate", "collect.timeout_ms must not be negative")
	}
	for name, n := range map[string]int64{
		"edge":   c.Ingest.MaxBytes.Edge,
		"tls":    c.Ingest.MaxBytes.TLS,
		"dns":    c.Ingest.MaxBytes.DNS,
		"webrtc": c.Ingest.MaxBytes.WebRTC,
		"tcp":    c.Ingest.MaxBytes.TCP,
	} {
		if n <= 0 {
			return errors.WrapInvalid(nil, "Config", "Validate",
				fmt.Sprintf("ingest.max_bytes.%s must be positive", name))
		}
	}
	return nil
}

// WaitKinds parses the comma-separated collect wait list.
func (c CollectConfig) WaitKinds() []string {
	var kinds []string
	for _, k := range strings.Split(c.WaitFor, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
