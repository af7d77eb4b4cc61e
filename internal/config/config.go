// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete cache configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	ExactCache ExactCacheConfig `yaml:"exact_cache"`
	Providers  []ProviderConfig `yaml:"providers"`
	Vault      VaultConfig      `yaml:"vault"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// CacheConfig contains semantic lookup defaults.
type CacheConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a lookup
	// result. Candidates below it are dropped before ranking.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// LookupLimit caps how many entries a lookup returns.
	LookupLimit int `yaml:"lookup_limit"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Backend   string        `yaml:"backend"` // openai, huggingface
	Model     string        `yaml:"model"`
	APIBase   string        `yaml:"api_base"`
	APIKey    string        `yaml:"api_key"` // secret ref (env://, vault://) or literal
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Backend string `yaml:"backend"` // qdrant, chromem

	// Qdrant settings.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`

	// Chromem settings. An empty path keeps the store in memory.
	Path string `yaml:"path"`
}

// ExactCacheConfig configures the optional exact-match answer cache.
type ExactCacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // memory, redis, dual

	TTL   time.Duration `yaml:"ttl"`
	L1TTL time.Duration `yaml:"l1_ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the exact cache.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"` // secret ref or literal
	DB           int           `yaml:"db"`
	ClusterAddrs []string      `yaml:"cluster_addrs"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// ProviderConfig defines a single completion provider. Providers are tried
// in listed order; the canned fallback needs no entry.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"` // gemini, openrouter, openai
	APIBase string        `yaml:"api_base"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`

	// APIKeys is a secret ref resolving to one or more comma-separated
	// keys. Backends with a keyring rotate through all of them.
	APIKeys string `yaml:"api_keys"`

	// FallbackModels overrides the built-in fallback list for backends
	// that retry across models.
	FallbackModels []string `yaml:"fallback_models"`

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// VaultConfig configures the vault:// secret backend. Leaving the address
// empty disables it; only env:// and literal refs resolve then.
type VaultConfig struct {
	Address    string `yaml:"address"`
	AuthMethod string `yaml:"auth_method"` // approle (default), cert
	RoleID     string `yaml:"role_id"`
	SecretID   string `yaml:"secret_id"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`

	// CacheTTL bounds how long a resolved credential is served from the
	// in-memory cache before Vault is consulted again.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			SimilarityThreshold: 0.85,
			LookupLimit:         5,
		},
		Embedding: EmbeddingConfig{
			Backend: "openai",
			Timeout: 30 * time.Second,
		},
		Vector: VectorConfig{
			Backend: "chromem",
		},
		ExactCache: ExactCacheConfig{
			Enabled: false,
			Backend: "memory",
			TTL:     time.Hour,
			L1TTL:   time.Minute,
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				PoolSize:     10,
			},
		},
		Vault: VaultConfig{
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "promptcache",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0, 1], got %v", c.Cache.SimilarityThreshold)
	}
	if c.Cache.LookupLimit < 0 {
		return fmt.Errorf("cache.lookup_limit cannot be negative")
	}

	switch c.Embedding.Backend {
	case "openai", "huggingface":
	default:
		return fmt.Errorf("unknown embedding backend: %q", c.Embedding.Backend)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension cannot be negative")
	}

	switch c.Vector.Backend {
	case "chromem":
	case "qdrant":
		if c.Vector.URL == "" {
			return fmt.Errorf("vector.url is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("unknown vector backend: %q", c.Vector.Backend)
	}

	if c.ExactCache.Enabled {
		switch c.ExactCache.Backend {
		case "memory", "redis", "dual":
		default:
			return fmt.Errorf("unknown exact cache backend: %q", c.ExactCache.Backend)
		}
	}

	if c.Vault.Address != "" {
		switch c.Vault.AuthMethod {
		case "", "approle":
			if c.Vault.RoleID == "" {
				return fmt.Errorf("vault.role_id is required for approle auth")
			}
		case "cert":
			if c.Vault.ClientCert == "" || c.Vault.ClientKey == "" {
				return fmt.Errorf("vault.client_cert and vault.client_key are required for cert auth")
			}
		default:
			return fmt.Errorf("unknown vault auth method: %q", c.Vault.AuthMethod)
		}
	}

	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider[%d]: name is required", i)
		}
		switch p.Type {
		case "gemini", "openrouter", "openai":
		default:
			return fmt.Errorf("provider[%d] %q: unknown type %q", i, p.Name, p.Type)
		}
		if p.APIKeys == "" {
			return fmt.Errorf("provider[%d] %q: api_keys is required", i, p.Name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("provider[%d] %q: timeout cannot be negative", i, p.Name)
		}
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("provider[%d] %q: requests_per_second cannot be negative", i, p.Name)
		}
	}

	return nil
}
