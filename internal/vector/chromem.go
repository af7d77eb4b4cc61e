package vector

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore implements Store using the embedded chromem-go database.
// It runs in-process with no external service, either fully in memory or
// persisted to disk, and is the backend of choice for tests and
// single-binary deployments.
//
// Points always arrive with vectors attached, so the chromem embedding
// hook is never invoked. The store keeps its own per-collection ID index
// for enumeration; with a persistent DB the index covers points written
// through this process.
type ChromemStore struct {
	db *chromem.DB

	mu  sync.RWMutex
	ids map[string]map[string]struct{}
}

// ChromemConfig holds configuration for the chromem store.
type ChromemConfig struct {
	// Path enables on-disk persistence when non-empty.
	Path string

	// Compress gzips persisted documents.
	Compress bool
}

// NewChromemStore creates a chromem-backed vector store.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:  db,
		ids: make(map[string]map[string]struct{}),
	}, nil
}

// embedFunc is required by chromem but must never run: every document is
// added with an externally computed embedding.
func embedFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("external embeddings required")
}

// CreateCollection provisions a collection.
func (s *ChromemStore) CreateCollection(_ context.Context, name string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(name, embedFunc) != nil {
		return ErrCollectionExists
	}
	if _, err := s.db.CreateCollection(name, nil, embedFunc); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.ids[name] = make(map[string]struct{})
	return nil
}

// HasCollection reports whether a collection exists.
func (s *ChromemStore) HasCollection(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.GetCollection(name, embedFunc) != nil, nil
}

// ListCollections returns the names of all collections.
func (s *ChromemStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.db.ListCollections()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	return names, nil
}

// DeleteCollection removes a collection and all its points.
func (s *ChromemStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(name, embedFunc) == nil {
		return ErrCollectionNotFound
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(s.ids, name)
	return nil
}

// Upsert stores points, replacing any with the same ID.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return ErrCollectionNotFound
	}

	for _, p := range points {
		// Replace semantics: drop any previous version of the point.
		if _, tracked := s.ids[collection][p.ID]; tracked {
			if err := col.Delete(ctx, nil, nil, p.ID); err != nil {
				return fmt.Errorf("replace point %s: %w", p.ID, err)
			}
		}

		doc := chromem.Document{
			ID:        p.ID,
			Content:   p.Payload.Prompt,
			Embedding: toFloat32(p.Vector),
			Metadata:  payloadToMetadata(p.Payload),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add point %s: %w", p.ID, err)
		}

		if s.ids[collection] == nil {
			s.ids[collection] = make(map[string]struct{})
		}
		s.ids[collection][p.ID] = struct{}{}
	}
	return nil
}

// Query finds the topK most similar points.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float64, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return nil, ErrCollectionNotFound
	}

	// chromem rejects nResults above the document count.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, toFloat32(vector), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			Point: Point{
				ID:      r.ID,
				Payload: metadataToPayload(r.Content, r.Metadata),
			},
			Similarity: float64(r.Similarity),
		})
	}
	return out, nil
}

// Fetch retrieves a single point by ID.
func (s *ChromemStore) Fetch(ctx context.Context, collection, id string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchLocked(ctx, collection, id)
}

func (s *ChromemStore) fetchLocked(ctx context.Context, collection, id string) (*Point, error) {
	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return nil, ErrCollectionNotFound
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem reports absence as an error; callers expect nil.
		return nil, nil
	}

	return &Point{
		ID:      doc.ID,
		Vector:  toFloat64(doc.Embedding),
		Payload: metadataToPayload(doc.Content, doc.Metadata),
	}, nil
}

// SetPayload replaces the payload of an existing point, keeping its vector.
// chromem documents are immutable, so the point is rewritten.
func (s *ChromemStore) SetPayload(ctx context.Context, collection, id string, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.fetchLocked(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("point %s not found", id)
	}

	col := s.db.GetCollection(collection, embedFunc)
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   payload.Prompt,
		Embedding: toFloat32(existing.Vector),
		Metadata:  payloadToMetadata(payload),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("rewrite point %s: %w", id, err)
	}
	return nil
}

// DeletePoints removes points by ID.
func (s *ChromemStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return ErrCollectionNotFound
	}

	for _, id := range ids {
		if _, tracked := s.ids[collection][id]; !tracked {
			continue
		}
		if err := col.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("delete point %s: %w", id, err)
		}
		delete(s.ids[collection], id)
	}
	return nil
}

// List returns every point in the collection without vectors.
func (s *ChromemStore) List(ctx context.Context, collection string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return nil, ErrCollectionNotFound
	}

	points := make([]Point, 0, len(s.ids[collection]))
	for id := range s.ids[collection] {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		points = append(points, Point{
			ID:      doc.ID,
			Payload: metadataToPayload(doc.Content, doc.Metadata),
		})
	}
	return points, nil
}

// Count returns the number of points in the collection.
func (s *ChromemStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collection, embedFunc)
	if col == nil {
		return 0, ErrCollectionNotFound
	}
	return int64(col.Count()), nil
}

// Ping reports store health. The embedded DB is always reachable.
func (s *ChromemStore) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func payloadToMetadata(p Payload) map[string]string {
	return map[string]string{
		"project_id":        p.ProjectID,
		"user_id":           p.UserID,
		"answer":            p.Answer,
		"compressed_prompt": p.CompressedPrompt,
		"compression_ratio": strconv.FormatFloat(p.CompressionRatio, 'f', -1, 64),
		"original_tokens":   strconv.Itoa(p.OriginalTokens),
		"compressed_tokens": strconv.Itoa(p.CompressedTokens),
		"created_at":        strconv.FormatInt(p.CreatedAt, 10),
		"times_accessed":    strconv.FormatInt(p.TimesAccessed, 10),
		"last_accessed_at":  strconv.FormatInt(p.LastAccessedAt, 10),
		"likes":             strconv.FormatInt(p.Likes, 10),
		"dislikes":          strconv.FormatInt(p.Dislikes, 10),
	}
}

func metadataToPayload(content string, meta map[string]string) Payload {
	ratio, _ := strconv.ParseFloat(meta["compression_ratio"], 64)
	origTokens, _ := strconv.Atoi(meta["original_tokens"])
	compTokens, _ := strconv.Atoi(meta["compressed_tokens"])
	createdAt, _ := strconv.ParseInt(meta["created_at"], 10, 64)
	accessed, _ := strconv.ParseInt(meta["times_accessed"], 10, 64)
	lastAccess, _ := strconv.ParseInt(meta["last_accessed_at"], 10, 64)
	likes, _ := strconv.ParseInt(meta["likes"], 10, 64)
	dislikes, _ := strconv.ParseInt(meta["dislikes"], 10, 64)

	return Payload{
		ProjectID:        meta["project_id"],
		UserID:           meta["user_id"],
		Prompt:           content,
		Answer:           meta["answer"],
		CompressedPrompt: meta["compressed_prompt"],
		CompressionRatio: ratio,
		OriginalTokens:   origTokens,
		CompressedTokens: compTokens,
		CreatedAt:        createdAt,
		TimesAccessed:    accessed,
		LastAccessedAt:   lastAccess,
		Likes:            likes,
		Dislikes:         dislikes,
	}
}
