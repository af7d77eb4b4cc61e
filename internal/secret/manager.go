// Package secret resolves backend credentials through scheme-routed
// providers. Config values like "env://GEMINI_API_KEYS" or
// "vault://secret/data/providers#gemini" are dereferenced at startup;
// values without a scheme pass through as static secrets.
package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Manager routes secret references to registered providers by URI scheme.
type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewManager creates a new secret manager.
func NewManager() *Manager {
	return &Manager{
		providers: make(map[string]Provider),
	}
}

// Register registers a provider for a scheme (e.g., "vault", "env").
func (m *Manager) Register(scheme string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[scheme] = provider
}

// Get resolves a secret reference. References without a scheme are
// returned as-is so plain values keep working in config files.
func (m *Manager) Get(ctx context.Context, ref string) (string, error) {
	scheme, path, ok := strings.Cut(ref, "://")
	if !ok {
		return ref, nil
	}

	m.mu.RLock()
	provider, registered := m.providers[scheme]
	m.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("no secret provider registered for scheme: %s", scheme)
	}
	return provider.Get(ctx, path)
}

// GetKeys resolves a reference holding a comma-separated credential list,
// as used by key-rotating providers. Whitespace around entries is dropped,
// empty entries are skipped.
func (m *Manager) GetKeys(ctx context.Context, ref string) ([]string, error) {
	raw, err := m.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("credential list %q resolved to no keys", ref)
	}
	return keys, nil
}

// Close closes all registered providers.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []string
	for scheme, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", scheme, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close providers: %s", strings.Join(errs, "; "))
	}
	return nil
}
