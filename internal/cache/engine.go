// Package cache implements the semantic prompt cache engine: per-project
// namespaces over a vector store, vote-aware hybrid ranking on lookup, and
// explicit access and feedback counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/promptcache/internal/embedding"
	"github.com/blueberrycongee/promptcache/internal/metrics"
	"github.com/blueberrycongee/promptcache/internal/vector"
	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
	"github.com/blueberrycongee/promptcache/pkg/types"
)

const (
	// namespacePrefix keys project collections in the vector store.
	namespacePrefix = "project_"

	// overfetchFactor widens the vector search so vote boosting has
	// candidates beyond the requested limit to promote.
	overfetchFactor = 3

	defaultLookupLimit = 5
)

// Engine is the semantic prompt cache over one vector store.
type Engine struct {
	embedder embedding.Embedder
	store    vector.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Config holds optional engine settings.
type Config struct {
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewEngine creates a cache engine on the given embedder and vector store.
func NewEngine(embedder embedding.Embedder, store vector.Store, cfg Config) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		embedder: embedder,
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("promptcache/cache"),
		now:      now,
	}, nil
}

// CollectionName returns the vector store collection for a project.
func CollectionName(projectID string) string {
	return namespacePrefix + projectID
}

// CreateNamespace provisions the vector collection for a project.
func (e *Engine) CreateNamespace(ctx context.Context, projectID string) error {
	err := e.store.CreateCollection(ctx, CollectionName(projectID), e.embedder.Dimension())
	if errors.Is(err, vector.ErrCollectionExists) {
		return perrors.ErrNamespaceExists
	}
	if err != nil {
		return fmt.Errorf("create namespace %s: %w", projectID, err)
	}

	e.logger.Info("namespace created", "project_id", projectID)
	return nil
}

// Namespaces returns the project IDs of all provisioned namespaces.
func (e *Engine) Namespaces(ctx context.Context) ([]string, error) {
	names, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	projects := make([]string, 0, len(names))
	for _, name := range names {
		if len(name) > len(namespacePrefix) && name[:len(namespacePrefix)] == namespacePrefix {
			projects = append(projects, name[len(namespacePrefix):])
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// CachePrompt embeds the prompt and stores a fresh entry in the project
// namespace. The new entry starts with one access and no votes.
func (e *Engine) CachePrompt(ctx context.Context, projectID, userID, prompt, answer string, meta types.CompressionMeta) (string, error) {
	ctx, span := e.tracer.Start(ctx, "cache.CachePrompt",
		trace.WithAttributes(attribute.String("project_id", projectID)))
	defer span.End()

	exists, err := e.store.HasCollection(ctx, CollectionName(projectID))
	if err != nil {
		return "", fmt.Errorf("check namespace %s: %w", projectID, err)
	}
	if !exists {
		return "", perrors.ErrNamespaceNotFound
	}

	emb, err := e.embed(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate embedding: %w", err)
	}

	entryID := uuid.New().String()
	now := e.now().Unix()
	point := vector.Point{
		ID:     entryID,
		Vector: emb,
		Payload: vector.Payload{
			ProjectID:        projectID,
			UserID:           userID,
			Prompt:           prompt,
			Answer:           answer,
			CompressedPrompt: meta.CompressedPrompt,
			CompressionRatio: meta.CompressionRatio,
			OriginalTokens:   meta.OriginalTokens,
			CompressedTokens: meta.CompressedTokens,
			CreatedAt:        now,
			TimesAccessed:    1,
			LastAccessedAt:   now,
		},
	}

	start := e.now()
	if err := e.store.Upsert(ctx, CollectionName(projectID), []vector.Point{point}); err != nil {
		return "", fmt.Errorf("store entry: %w", err)
	}
	metrics.VectorStoreLatency.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	metrics.CacheInserts.WithLabelValues(projectID).Inc()

	e.logger.Debug("prompt cached", "project_id", projectID, "entry_id", entryID)
	return entryID, nil
}

// LookupPrompt searches the project namespace for semantically similar
// entries. Candidates below the similarity threshold are dropped, the rest
// are ordered by hybrid score (similarity plus vote boost), and at most
// limit entries are returned with their raw similarity as Score. A missing
// namespace or no match yields an empty result, not an error. Lookup does
// not touch access counters.
func (e *Engine) LookupPrompt(ctx context.Context, projectID, prompt string, limit int, threshold float64) ([]types.CachedPromptEntry, error) {
	ctx, span := e.tracer.Start(ctx, "cache.LookupPrompt",
		trace.WithAttributes(attribute.String("project_id", projectID)))
	defer span.End()

	if limit <= 0 {
		limit = defaultLookupLimit
	}

	emb, err := e.embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}

	start := e.now()
	results, err := e.store.Query(ctx, CollectionName(projectID), emb, limit*overfetchFactor)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		metrics.CacheLookups.WithLabelValues(projectID, "miss").Inc()
		return []types.CachedPromptEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	metrics.VectorStoreLatency.WithLabelValues("query").Observe(time.Since(start).Seconds())

	candidates := make([]types.CachedPromptEntry, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		entry := entryFromPoint(r.Point)
		entry.Score = r.Similarity
		candidates = append(candidates, entry)
	}

	ranked := rankCandidates(candidates, limit)
	if len(ranked) == 0 {
		metrics.CacheLookups.WithLabelValues(projectID, "miss").Inc()
		return []types.CachedPromptEntry{}, nil
	}

	metrics.CacheLookups.WithLabelValues(projectID, "hit").Inc()
	span.SetAttributes(attribute.Int("results", len(ranked)))
	return ranked, nil
}

// IncrementHit bumps the access counter of an entry and refreshes its last
// access time. Returns false without error when the namespace or entry is
// absent. Concurrent increments race under last-writer-wins.
func (e *Engine) IncrementHit(ctx context.Context, projectID, entryID string) (bool, error) {
	point, err := e.fetch(ctx, projectID, entryID)
	if err != nil || point == nil {
		return false, err
	}

	point.Payload.TimesAccessed++
	point.Payload.LastAccessedAt = e.now().Unix()
	if err := e.store.SetPayload(ctx, CollectionName(projectID), entryID, point.Payload); err != nil {
		return false, fmt.Errorf("update entry %s: %w", entryID, err)
	}
	return true, nil
}

// Vote applies a feedback vote to an entry and returns its counters.
// Unknown vote kinds are a no-op that still reports current counters.
// Returns found=false when the namespace or entry is absent.
func (e *Engine) Vote(ctx context.Context, projectID, entryID string, kind types.VoteKind) (counts types.VoteCounts, found bool, err error) {
	point, err := e.fetch(ctx, projectID, entryID)
	if err != nil || point == nil {
		return types.VoteCounts{}, false, err
	}

	switch kind {
	case types.VoteLike:
		point.Payload.Likes++
	case types.VoteDislike:
		point.Payload.Dislikes++
	default:
		e.logger.Warn("ignoring unknown vote kind", "kind", string(kind), "entry_id", entryID)
		return types.VoteCounts{Likes: point.Payload.Likes, Dislikes: point.Payload.Dislikes}, true, nil
	}

	if err := e.store.SetPayload(ctx, CollectionName(projectID), entryID, point.Payload); err != nil {
		return types.VoteCounts{}, false, fmt.Errorf("update entry %s: %w", entryID, err)
	}

	metrics.CacheVotes.WithLabelValues(projectID, string(kind)).Inc()
	return types.VoteCounts{Likes: point.Payload.Likes, Dislikes: point.Payload.Dislikes}, true, nil
}

// ListEntries returns a page of entries ordered by last access time,
// newest first. Ordering happens here; vector stores do not index on
// payload timestamps. A missing namespace yields an empty page.
func (e *Engine) ListEntries(ctx context.Context, projectID string, limit, offset int) ([]types.CachedPromptEntry, error) {
	points, err := e.store.List(ctx, CollectionName(projectID))
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return []types.CachedPromptEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries := make([]types.CachedPromptEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, entryFromPoint(p))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.After(entries[j].LastAccessedAt)
	})

	if offset >= len(entries) {
		return []types.CachedPromptEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// DeleteEntries removes entries by ID and returns the number of IDs
// submitted for deletion. A missing namespace removes nothing.
func (e *Engine) DeleteEntries(ctx context.Context, projectID string, entryIDs []string) (int, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}

	err := e.store.DeletePoints(ctx, CollectionName(projectID), entryIDs)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}

	metrics.CacheDeletes.WithLabelValues(projectID).Add(float64(len(entryIDs)))
	return len(entryIDs), nil
}

// ClearNamespace drops the whole project namespace and returns how many
// entries it held. A missing namespace clears nothing.
func (e *Engine) ClearNamespace(ctx context.Context, projectID string) (int64, error) {
	count, err := e.store.Count(ctx, CollectionName(projectID))
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}

	if err := e.store.DeleteCollection(ctx, CollectionName(projectID)); err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("clear namespace %s: %w", projectID, err)
	}

	e.logger.Info("namespace cleared", "project_id", projectID, "entries", count)
	return count, nil
}

// Stats summarizes a project namespace. Absent or empty namespaces report
// zeros. Average compression is the mean ratio over all entries, counting
// entries without compression data as zero, rounded to one decimal place.
func (e *Engine) Stats(ctx context.Context, projectID string) (types.ProjectStats, error) {
	stats := types.ProjectStats{ProjectID: projectID}

	points, err := e.store.List(ctx, CollectionName(projectID))
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("collect stats: %w", err)
	}

	var ratioSum float64
	for _, p := range points {
		stats.TotalEntries++
		stats.TotalHits += p.Payload.TimesAccessed
		ratioSum += p.Payload.CompressionRatio
	}
	if stats.TotalEntries > 0 {
		stats.AvgCompression = math.Round(ratioSum/float64(stats.TotalEntries)*10) / 10
	}
	return stats, nil
}

// Ping checks vector store health.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Close releases the underlying vector store.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) embed(ctx context.Context, text string) ([]float64, error) {
	start := e.now()
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	metrics.EmbeddingLatency.WithLabelValues(e.embedder.Model()).Observe(time.Since(start).Seconds())
	return emb, nil
}

// fetch resolves an entry point, folding namespace and entry absence into
// a nil point.
func (e *Engine) fetch(ctx context.Context, projectID, entryID string) (*vector.Point, error) {
	point, err := e.store.Fetch(ctx, CollectionName(projectID), entryID)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entry %s: %w", entryID, err)
	}
	return point, nil
}

func entryFromPoint(p vector.Point) types.CachedPromptEntry {
	return types.CachedPromptEntry{
		EntryID:          p.ID,
		ProjectID:        p.Payload.ProjectID,
		UserID:           p.Payload.UserID,
		KeyEmbedding:     p.Vector,
		Prompt:           p.Payload.Prompt,
		Answer:           p.Payload.Answer,
		CompressedPrompt: p.Payload.CompressedPrompt,
		CompressionRatio: p.Payload.CompressionRatio,
		OriginalTokens:   p.Payload.OriginalTokens,
		CompressedTokens: p.Payload.CompressedTokens,
		CreatedAt:        time.Unix(p.Payload.CreatedAt, 0).UTC(),
		TimesAccessed:    p.Payload.TimesAccessed,
		LastAccessedAt:   time.Unix(p.Payload.LastAccessedAt, 0).UTC(),
		Likes:            p.Payload.Likes,
		Dislikes:         p.Payload.Dislikes,
	}
}
