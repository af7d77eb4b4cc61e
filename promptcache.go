// Package promptcache provides a semantic prompt cache as a Go library.
// Answered prompts are embedded and stored per project; later lookups
// return cached answers for semantically similar prompts, ranked by a
// blend of vector similarity and user feedback. When the cache misses, a
// resilient completion chain produces a fresh answer and feeds it back
// into the cache.
//
// Basic usage:
//
//	client, err := promptcache.New(
//	    promptcache.WithEmbedder(embedder),
//	    promptcache.WithVectorStore(store),
//	    promptcache.WithProviders(gemini, openrouter),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Ask(ctx, "proj-1", "user-1", "What is semantic caching?")
package promptcache

import (
	"github.com/blueberrycongee/promptcache/internal/provider"
	"github.com/blueberrycongee/promptcache/pkg/errors"
	"github.com/blueberrycongee/promptcache/pkg/types"
)

// Version is the current version of the library.
const Version = "0.1.0"

// Re-export core entry types for convenience.
type (
	// Entry is a cached prompt with its answer and counters.
	Entry = types.CachedPromptEntry

	// CompressionMeta carries optional prompt compression details.
	CompressionMeta = types.CompressionMeta

	// VoteKind names a feedback vote.
	VoteKind = types.VoteKind

	// VoteCounts holds the feedback counters of an entry.
	VoteCounts = types.VoteCounts

	// ProjectStats summarizes a project namespace.
	ProjectStats = types.ProjectStats
)

// Re-export provider types.
type (
	// Provider produces completions for prompts.
	Provider = provider.Provider

	// Keyring rotates through a fixed set of API keys.
	Keyring = provider.Keyring
)

// Re-export vote constants.
const (
	VoteLike    = types.VoteLike
	VoteDislike = types.VoteDislike
)

// Re-export sentinel errors.
var (
	// ErrProjectExists reports a duplicate project namespace.
	ErrProjectExists = errors.ErrNamespaceExists

	// ErrProjectNotFound reports a missing project namespace.
	ErrProjectNotFound = errors.ErrNamespaceNotFound

	// ErrCredentialsExhausted reports that a provider ran out of usable
	// API keys.
	ErrCredentialsExhausted = errors.ErrCredentialsExhausted
)
