// Package embedding provides text embedding backends for the semantic cache.
package embedding

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Model returns the name of the embedding model.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}
