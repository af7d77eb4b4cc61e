// Package metrics provides Prometheus metrics for the prompt cache: lookup
// outcomes, entry churn, feedback votes, completion fallbacks, and the
// latency of the embedding and vector-store backends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "promptcache"
)

// LatencyBuckets defines histogram buckets for backend latency (seconds).
var LatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 30.0, 60.0,
}

// =============================================================================
// Cache Metrics
// =============================================================================

var (
	// CacheLookups counts semantic lookups by outcome (hit or miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total semantic cache lookups by outcome",
		},
		[]string{"project", "outcome"},
	)

	// CacheInserts counts cached entries.
	CacheInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_inserts_total",
			Help:      "Total entries written to the semantic cache",
		},
		[]string{"project"},
	)

	// CacheVotes counts feedback votes by kind.
	CacheVotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_votes_total",
			Help:      "Total feedback votes on cached entries",
		},
		[]string{"project", "kind"},
	)

	// CacheDeletes counts removed entries.
	CacheDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_deletes_total",
			Help:      "Total entries removed from the semantic cache",
		},
		[]string{"project"},
	)

	// ExactCacheLookups counts exact-match lookups by outcome.
	ExactCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exact_cache_lookups_total",
			Help:      "Total exact-match cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// =============================================================================
// Backend Latency Metrics
// =============================================================================

var (
	// EmbeddingLatency tracks embedding backend call latency.
	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_latency_seconds",
			Help:      "Embedding backend call latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"model"},
	)

	// VectorStoreLatency tracks vector store operation latency.
	VectorStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_store_latency_seconds",
			Help:      "Vector store operation latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"operation"},
	)
)

// =============================================================================
// Completion Chain Metrics
// =============================================================================

var (
	// ProviderAttempts counts completion attempts per provider and outcome.
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Total completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderFallbacks counts how often the chain moved past a failed provider.
	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Total fallbacks to the next provider in the chain",
		},
		[]string{"from"},
	)

	// CredentialRotations counts credential advances inside rotating providers.
	CredentialRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rotations_total",
			Help:      "Total credential rotations by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	// CompletionLatency tracks end-to-end completion latency per provider.
	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Completion latency in seconds by serving provider",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider"},
	)
)
