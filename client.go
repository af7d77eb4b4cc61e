package promptcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blueberrycongee/promptcache/internal/cache"
	"github.com/blueberrycongee/promptcache/internal/cache/exact"
	"github.com/blueberrycongee/promptcache/internal/metrics"
	"github.com/blueberrycongee/promptcache/internal/observability"
	"github.com/blueberrycongee/promptcache/internal/provider"
	"github.com/blueberrycongee/promptcache/internal/secret"
	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
	"github.com/blueberrycongee/promptcache/pkg/types"
)

// Answer is the result of Ask: the answer text and where it came from.
type Answer struct {
	// Text is the answer content.
	Text string `json:"text"`

	// Source names what served the answer: "exact" for the exact-match
	// cache, "semantic" for a semantic cache hit, otherwise the name of
	// the completion provider.
	Source string `json:"source"`

	// EntryID is the cache entry behind the answer, when one exists.
	EntryID string `json:"entry_id,omitempty"`

	// Similarity is the cosine similarity of a semantic hit.
	Similarity float64 `json:"similarity,omitempty"`
}

// Client is the main entry point of the library. It combines the semantic
// cache engine, the optional exact-match cache, and the completion chain.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	engine  *cache.Engine
	chain   *provider.Chain
	answers AnswerCache
	logger  *slog.Logger
	config  *ClientConfig

	// tracing is set when the client owns the tracer provider lifecycle.
	tracing *observability.TracerProvider

	// secrets is set when the client owns the secret manager lifecycle.
	secrets *secret.Manager
}

// New creates a new client with the given options. An embedder and a
// vector store are required; everything else has defaults.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.VectorStore == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in [0, 1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.LookupLimit < 0 {
		return nil, fmt.Errorf("lookup limit cannot be negative")
	}

	engine, err := cache.NewEngine(cfg.Embedder, cfg.VectorStore, cache.Config{
		Logger: cfg.Logger,
		Now:    cfg.now,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		engine:  engine,
		chain:   provider.NewChain(cfg.Logger, cfg.Providers...),
		answers: cfg.AnswerCache,
		logger:  cfg.Logger,
		config:  cfg,
	}

	c.logger.Info("promptcache client initialized",
		"embedding_model", cfg.Embedder.Model(),
		"providers", c.chain.Providers(),
		"answer_cache", cfg.AnswerCache != nil,
	)
	return c, nil
}

// CreateProject provisions the cache namespace for a project. Returns
// ErrProjectExists when the namespace is already provisioned.
func (c *Client) CreateProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	return c.engine.CreateNamespace(ctx, projectID)
}

// Projects returns the IDs of all provisioned projects, sorted.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	return c.engine.Namespaces(ctx)
}

// CachePrompt stores an answered prompt in the project namespace and
// returns the new entry ID. The project must exist. The exact-match cache,
// when enabled, learns the answer too.
func (c *Client) CachePrompt(ctx context.Context, projectID, userID, prompt, answer string, meta CompressionMeta) (string, error) {
	entryID, err := c.engine.CachePrompt(ctx, projectID, userID, prompt, answer, meta)
	if err != nil {
		return "", err
	}

	c.storeExact(ctx, projectID, prompt, &exact.Entry{EntryID: entryID, Answer: answer})
	return entryID, nil
}

// Lookup searches a project for entries semantically similar to the
// prompt. A non-positive limit and a negative threshold fall back to the
// client defaults; a threshold of zero is honored and disables the
// similarity floor. Lookup never touches access counters; call
// IncrementHit when an entry is actually served.
func (c *Client) Lookup(ctx context.Context, projectID, prompt string, limit int, threshold float64) ([]Entry, error) {
	if limit <= 0 {
		limit = c.config.LookupLimit
	}
	if threshold < 0 {
		threshold = c.config.SimilarityThreshold
	}
	return c.engine.LookupPrompt(ctx, projectID, prompt, limit, threshold)
}

// IncrementHit bumps the access counter of an entry. Returns false when
// the project or entry does not exist.
func (c *Client) IncrementHit(ctx context.Context, projectID, entryID string) (bool, error) {
	return c.engine.IncrementHit(ctx, projectID, entryID)
}

// Vote records feedback on an entry and returns its updated counters.
func (c *Client) Vote(ctx context.Context, projectID, entryID string, kind VoteKind) (VoteCounts, bool, error) {
	return c.engine.Vote(ctx, projectID, entryID, kind)
}

// ListEntries returns a page of project entries, most recently accessed
// first.
func (c *Client) ListEntries(ctx context.Context, projectID string, limit, offset int) ([]Entry, error) {
	return c.engine.ListEntries(ctx, projectID, limit, offset)
}

// DeleteEntries removes entries by ID and reports how many were submitted
// for deletion.
func (c *Client) DeleteEntries(ctx context.Context, projectID string, entryIDs []string) (int, error) {
	return c.engine.DeleteEntries(ctx, projectID, entryIDs)
}

// ClearProject drops the whole project namespace and reports how many
// entries it held. Exact-match answers for the project age out via TTL.
func (c *Client) ClearProject(ctx context.Context, projectID string) (int64, error) {
	return c.engine.ClearNamespace(ctx, projectID)
}

// Stats summarizes a project namespace.
func (c *Client) Stats(ctx context.Context, projectID string) (ProjectStats, error) {
	return c.engine.Stats(ctx, projectID)
}

// Complete produces a completion through the provider chain without
// touching the cache. It always returns an answer; the second return
// value names the provider that served it.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, string) {
	return c.chain.Complete(ctx, prompt, systemPrompt)
}

// Providers returns the names of the configured completion providers in
// chain order, including the terminal canned provider.
func (c *Client) Providers() []string {
	return c.chain.Providers()
}

// Ask answers a prompt with the full pipeline: exact-match cache, then
// semantic lookup, then the completion chain. A chain answer is cached
// back into the project namespace when the project exists. Ask degrades
// rather than fails: cache-side errors are logged and the chain still
// produces an answer.
func (c *Client) Ask(ctx context.Context, projectID, userID, prompt string) (*Answer, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if hit := c.lookupExact(ctx, projectID, prompt); hit != nil {
		return hit, nil
	}

	if hit := c.lookupSemantic(ctx, projectID, prompt); hit != nil {
		return hit, nil
	}

	text, servedBy := c.chain.Complete(ctx, prompt, "")
	answer := &Answer{Text: text, Source: servedBy}

	entryID, err := c.engine.CachePrompt(ctx, projectID, userID, prompt, text, types.CompressionMeta{})
	switch {
	case errors.Is(err, perrors.ErrNamespaceNotFound):
		c.logger.Debug("skipping cache write, project not provisioned", "project_id", projectID)
	case err != nil:
		c.logger.Warn("failed to cache completion", "project_id", projectID, "error", err)
	default:
		answer.EntryID = entryID
		c.storeExact(ctx, projectID, prompt, &exact.Entry{EntryID: entryID, Answer: text})
	}
	return answer, nil
}

// Ping checks the health of the vector store and, when enabled, the
// exact-match cache.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.engine.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	if c.answers != nil {
		if err := c.answers.Ping(ctx); err != nil {
			return fmt.Errorf("answer cache: %w", err)
		}
	}
	return nil
}

// Close releases the vector store, the exact-match cache, and the secret
// manager and tracer provider when the client owns them.
func (c *Client) Close() error {
	var errs []error
	if err := c.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.answers != nil {
		if err := c.answers.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.secrets != nil {
		if err := c.secrets.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.tracing != nil {
		if err := c.tracing.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) lookupExact(ctx context.Context, projectID, prompt string) *Answer {
	if c.answers == nil {
		return nil
	}

	entry, err := c.answers.Get(ctx, exact.Key(projectID, prompt))
	if err != nil {
		c.logger.Warn("answer cache read failed", "error", err)
		return nil
	}
	if entry == nil {
		metrics.ExactCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.ExactCacheLookups.WithLabelValues("hit").Inc()
	// Exact hits count as accesses on the backing entry.
	if entry.EntryID != "" {
		if _, err := c.engine.IncrementHit(ctx, projectID, entry.EntryID); err != nil {
			c.logger.Warn("failed to bump hit counter", "entry_id", entry.EntryID, "error", err)
		}
	}
	return &Answer{Text: entry.Answer, Source: "exact", EntryID: entry.EntryID}
}

func (c *Client) lookupSemantic(ctx context.Context, projectID, prompt string) *Answer {
	entries, err := c.engine.LookupPrompt(ctx, projectID, prompt, 1, c.config.SimilarityThreshold)
	if err != nil {
		c.logger.Warn("semantic lookup failed, falling through to completion",
			"project_id", projectID, "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	best := entries[0]
	if _, err := c.engine.IncrementHit(ctx, projectID, best.EntryID); err != nil {
		c.logger.Warn("failed to bump hit counter", "entry_id", best.EntryID, "error", err)
	}
	c.storeExact(ctx, projectID, prompt, &exact.Entry{EntryID: best.EntryID, Answer: best.Answer})

	return &Answer{
		Text:       best.Answer,
		Source:     "semantic",
		EntryID:    best.EntryID,
		Similarity: best.Score,
	}
}

func (c *Client) storeExact(ctx context.Context, projectID, prompt string, entry *exact.Entry) {
	if c.answers == nil {
		return
	}
	if err := c.answers.Set(ctx, exact.Key(projectID, prompt), entry, c.config.AnswerCacheTTL); err != nil {
		c.logger.Warn("answer cache write failed", "error", err)
	}
}
