package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

func TestManagerGet(t *testing.T) {
	path := writeConfigFile(t, `
cache:
  similarity_threshold: 0.8
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if got := mgr.Get().Cache.SimilarityThreshold; got != 0.8 {
		t.Fatalf("Get().Cache.SimilarityThreshold = %v, want 0.8", got)
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfigFile(t, `
cache:
  similarity_threshold: 0.8
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	var notified *Config
	mgr.OnChange(func(c *Config) { notified = c })

	if err := os.WriteFile(path, []byte(`
cache:
  similarity_threshold: 0.95
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := mgr.Get().Cache.SimilarityThreshold; got != 0.95 {
		t.Fatalf("Get().Cache.SimilarityThreshold = %v, want 0.95", got)
	}
	if notified == nil || notified.Cache.SimilarityThreshold != 0.95 {
		t.Fatal("OnChange callback did not receive the new config")
	}
}

func TestManagerReloadKeepsConfigOnError(t *testing.T) {
	path := writeConfigFile(t, `
cache:
  similarity_threshold: 0.8
`)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if err := os.WriteFile(path, []byte(`
cache:
  similarity_threshold: 7
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := mgr.Reload(); err == nil {
		t.Fatal("Reload() should fail on invalid config")
	}

	if got := mgr.Get().Cache.SimilarityThreshold; got != 0.8 {
		t.Fatalf("Get().Cache.SimilarityThreshold = %v, want previous 0.8", got)
	}
}
