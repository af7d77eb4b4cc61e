// Package provider implements completion backends and the resilient chain
// that fronts them: credential-rotating Gemini, model-fallback OpenRouter,
// OpenAI-compatible gateways, and a canned terminal provider that never
// fails.
package provider

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Provider is a completion backend.
type Provider interface {
	// Name identifies the provider in logs and fallback reports.
	Name() string

	// Complete sends a prompt and optional system instruction to the
	// backend and returns the generated text.
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Keyring is a concurrency-safe rotating credential cursor. Every caller
// draws the next credential in round-robin order; the cursor persists
// across requests so rotation continues where the previous one left off.
type Keyring struct {
	keys   []string
	cursor atomic.Uint64
}

// NewKeyring creates a keyring over the given credentials. Empty strings
// are dropped; at least one usable credential is required.
func NewKeyring(keys ...string) (*Keyring, error) {
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("at least one credential is required")
	}
	return &Keyring{keys: filtered}, nil
}

// Next returns the current credential and advances the cursor.
func (k *Keyring) Next() string {
	i := k.cursor.Add(1) - 1
	return k.keys[i%uint64(len(k.keys))]
}

// Len returns the number of credentials in the ring.
func (k *Keyring) Len() int {
	return len(k.keys)
}
