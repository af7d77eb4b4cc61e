package promptcache

import (
	"log/slog"
	"time"

	"github.com/blueberrycongee/promptcache/internal/cache/exact"
	"github.com/blueberrycongee/promptcache/internal/embedding"
	"github.com/blueberrycongee/promptcache/internal/vector"
)

// Re-export the pluggable backend contracts so callers can supply their
// own implementations.
type (
	// Embedder turns text into vectors.
	Embedder = embedding.Embedder

	// VectorStore persists and searches embeddings.
	VectorStore = vector.Store

	// AnswerCache is the optional exact-match cache in front of the
	// semantic engine.
	AnswerCache = exact.Cache
)

// ClientConfig holds all configuration for the client.
type ClientConfig struct {
	// Embedder generates prompt embeddings. Required.
	Embedder Embedder

	// VectorStore holds the per-project namespaces. Required.
	VectorStore VectorStore

	// Providers are the completion backends, tried in order. The canned
	// fallback is always appended.
	Providers []Provider

	// AnswerCache short-circuits byte-identical prompts. Optional.
	AnswerCache AnswerCache

	// AnswerCacheTTL bounds how long an exact-match answer is served.
	AnswerCacheTTL time.Duration

	// SimilarityThreshold is the minimum cosine similarity for a lookup
	// result.
	SimilarityThreshold float64

	// LookupLimit caps how many entries a lookup returns.
	LookupLimit int

	// Logging
	Logger *slog.Logger

	// now overrides the clock, for tests.
	now func() time.Time
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		AnswerCacheTTL:      time.Hour,
		SimilarityThreshold: 0.85,
		LookupLimit:         5,
		Logger:              slog.Default(),
		now:                 time.Now,
	}
}

// WithEmbedder sets the embedding backend.
//
// Example:
//
//	embedder, _ := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	promptcache.WithEmbedder(embedder)
func WithEmbedder(e Embedder) Option {
	return func(c *ClientConfig) {
		c.Embedder = e
	}
}

// WithVectorStore sets the vector store backend.
func WithVectorStore(s VectorStore) Option {
	return func(c *ClientConfig) {
		c.VectorStore = s
	}
}

// WithProviders sets the completion providers, tried in order. The canned
// fallback provider is appended automatically, so Ask always produces an
// answer even with no providers configured.
func WithProviders(providers ...Provider) Option {
	return func(c *ClientConfig) {
		c.Providers = append(c.Providers, providers...)
	}
}

// WithAnswerCache enables the exact-match answer cache.
func WithAnswerCache(cache AnswerCache) Option {
	return func(c *ClientConfig) {
		c.AnswerCache = cache
	}
}

// WithAnswerCacheTTL sets the exact-match cache TTL.
func WithAnswerCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.AnswerCacheTTL = ttl
	}
}

// WithSimilarityThreshold sets the minimum cosine similarity for lookup
// results. Values outside [0, 1] are rejected by New.
func WithSimilarityThreshold(threshold float64) Option {
	return func(c *ClientConfig) {
		c.SimilarityThreshold = threshold
	}
}

// WithLookupLimit caps how many entries a lookup returns.
func WithLookupLimit(limit int) Option {
	return func(c *ClientConfig) {
		c.LookupLimit = limit
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// withClock overrides the clock, for tests.
func withClock(now func() time.Time) Option {
	return func(c *ClientConfig) {
		c.now = now
	}
}
