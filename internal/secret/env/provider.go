// Package env implements a secret provider that reads from environment
// variables, the default source for provider API keys in development.
package env

import (
	"context"
	"fmt"
	"os"
)

// Provider implements the secret.Provider interface for environment variables.
type Provider struct{}

// New creates a new Env provider.
func New() *Provider {
	return &Provider{}
}

// Get retrieves the value of the environment variable named by path.
// Unset and empty variables are both treated as missing; an empty API key
// is never a usable credential.
func (p *Provider) Get(_ context.Context, path string) (string, error) {
	val, ok := os.LookupEnv(path)
	if !ok || val == "" {
		return "", fmt.Errorf("environment variable %q not set", path)
	}
	return val, nil
}

// Close is a no-op for the Env provider.
func (p *Provider) Close() error {
	return nil
}
