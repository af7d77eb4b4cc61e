// Package vector provides vector storage backends for the prompt cache.
// Each project namespace maps to one collection; similarity is cosine.
package vector

import (
	"context"
	"errors"
)

// Sentinel errors shared by all store implementations.
var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
)

// Store defines the interface for vector storage backends.
type Store interface {
	// CreateCollection provisions a collection with cosine distance.
	// Returns ErrCollectionExists when it is already present.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// HasCollection reports whether a collection exists.
	HasCollection(ctx context.Context, name string) (bool, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// DeleteCollection removes a collection and all its points.
	// Returns ErrCollectionNotFound when it is absent.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert stores points, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query finds the topK most similar points. Results are sorted by
	// similarity descending (cosine: 1 = identical, 0 = orthogonal).
	Query(ctx context.Context, collection string, vector []float64, topK int) ([]SearchResult, error)

	// Fetch retrieves a single point by ID. Returns (nil, nil) when the
	// point is absent.
	Fetch(ctx context.Context, collection, id string) (*Point, error)

	// SetPayload replaces the payload of an existing point, keeping its
	// vector. Concurrent writers race under last-writer-wins.
	SetPayload(ctx context.Context, collection, id string, payload Payload) error

	// DeletePoints removes points by ID. Absent IDs are ignored.
	DeletePoints(ctx context.Context, collection string, ids []string) error

	// List returns every point in the collection without vectors.
	List(ctx context.Context, collection string) ([]Point, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Ping checks if the vector store is healthy.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float64
	Payload Payload
}

// Payload carries the cached entry metadata stored alongside the vector.
// Timestamps are unix seconds.
type Payload struct {
	ProjectID        string  `json:"project_id"`
	UserID           string  `json:"user_id"`
	Prompt           string  `json:"prompt"`
	Answer           string  `json:"answer"`
	CompressedPrompt string  `json:"compressed_prompt,omitempty"`
	CompressionRatio float64 `json:"compression_ratio"`
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
	CreatedAt        int64   `json:"created_at"`
	TimesAccessed    int64   `json:"times_accessed"`
	LastAccessedAt   int64   `json:"last_accessed_at"`
	Likes            int64   `json:"likes"`
	Dislikes         int64   `json:"dislikes"`
}

// SearchResult is one query hit.
type SearchResult struct {
	Point

	// Similarity is the cosine similarity in [0, 1] for normalized inputs
	// (1 = identical). Distance = 1 - Similarity.
	Similarity float64
}
