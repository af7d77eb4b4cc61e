package secret

import "context"

// Provider resolves credential material for completion and embedding
// backends from one source.
type Provider interface {
	// Get retrieves the secret value for the given path.
	// path examples: "GEMINI_API_KEYS" (env), "secret/data/providers#gemini" (vault)
	Get(ctx context.Context, path string) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}
