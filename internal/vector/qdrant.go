package vector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// QdrantStore implements Store using the Qdrant HTTP API with one
// collection per project namespace.
// Reference: https://qdrant.tech/documentation/concepts/search/
type QdrantStore struct {
	client  *http.Client
	apiBase string
	apiKey  string
}

// QdrantConfig holds configuration for the Qdrant store.
type QdrantConfig struct {
	APIBase string
	APIKey  string
	Timeout time.Duration
}

// NewQdrantStore creates a new Qdrant vector store.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("qdrant api_base is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &QdrantStore{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiBase: cfg.APIBase,
		apiKey:  cfg.APIKey,
	}, nil
}

// CreateCollection provisions a collection with cosine distance.
func (q *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := q.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return ErrCollectionExists
	}

	createBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", q.apiBase, name)
	return q.do(ctx, http.MethodPut, url, createBody, nil)
}

// HasCollection reports whether a collection exists.
func (q *QdrantStore) HasCollection(ctx context.Context, name string) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s/exists", q.apiBase, name)

	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, url, nil, &result); err != nil {
		return false, err
	}
	return result.Result.Exists, nil
}

// ListCollections returns the names of all collections.
func (q *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/collections", q.apiBase)

	var result struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, url, nil, &result); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Result.Collections))
	for _, c := range result.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// DeleteCollection removes a collection and all its points.
func (q *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	exists, err := q.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		return ErrCollectionNotFound
	}

	url := fmt.Sprintf("%s/collections/%s", q.apiBase, name)
	return q.do(ctx, http.MethodDelete, url, nil, nil)
}

// Upsert stores points, replacing any with the same ID.
func (q *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qp := make([]qdrantPoint, 0, len(points))
	for _, p := range points {
		qp = append(qp, qdrantPoint{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: p.Payload,
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.apiBase, collection)
	return q.do(ctx, http.MethodPut, url, map[string]any{"points": qp}, nil)
}

// Query finds the topK most similar points.
func (q *QdrantStore) Query(ctx context.Context, collection string, vector []float64, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 1
	}

	searchBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.apiBase, collection)

	var searchResp struct {
		Result []qdrantScoredPoint `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, url, searchBody, &searchResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		results = append(results, SearchResult{
			Point: Point{
				ID:      r.ID,
				Payload: r.Payload,
			},
			// Qdrant reports cosine similarity as the score directly.
			Similarity: r.Score,
		})
	}
	return results, nil
}

// Fetch retrieves a single point by ID.
func (q *QdrantStore) Fetch(ctx context.Context, collection, id string) (*Point, error) {
	url := fmt.Sprintf("%s/collections/%s/points/%s", q.apiBase, collection, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant fetch failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Result qdrantPoint `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Point{
		ID:      result.Result.ID,
		Vector:  result.Result.Vector,
		Payload: result.Result.Payload,
	}, nil
}

// SetPayload replaces the payload of an existing point.
func (q *QdrantStore) SetPayload(ctx context.Context, collection, id string, payload Payload) error {
	body := map[string]any{
		"payload": payload,
		"points":  []string{id},
	}
	url := fmt.Sprintf("%s/collections/%s/points/payload?wait=true", q.apiBase, collection)
	return q.do(ctx, http.MethodPost, url, body, nil)
}

// DeletePoints removes points by ID.
func (q *QdrantStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.apiBase, collection)
	return q.do(ctx, http.MethodPost, url, body, nil)
}

// List returns every point in the collection, paging through the scroll API.
func (q *QdrantStore) List(ctx context.Context, collection string) ([]Point, error) {
	const pageSize = 256

	var (
		points []Point
		offset any
	)
	for {
		body := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		url := fmt.Sprintf("%s/collections/%s/points/scroll", q.apiBase, collection)

		var scrollResp struct {
			Result struct {
				Points         []qdrantPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := q.do(ctx, http.MethodPost, url, body, &scrollResp); err != nil {
			return nil, err
		}

		for _, p := range scrollResp.Result.Points {
			points = append(points, Point{ID: p.ID, Payload: p.Payload})
		}

		if scrollResp.Result.NextPageOffset == nil {
			return points, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

// Count returns the number of points in the collection.
func (q *QdrantStore) Count(ctx context.Context, collection string) (int64, error) {
	url := fmt.Sprintf("%s/collections/%s/points/count", q.apiBase, collection)

	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &result); err != nil {
		return 0, err
	}
	return result.Result.Count, nil
}

// Ping checks if Qdrant is healthy.
func (q *QdrantStore) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections", q.apiBase)
	return q.do(ctx, http.MethodGet, url, nil, nil)
}

// Close releases resources.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantStore) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q.setHeaders(req)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	// Qdrant answers 404 for operations on a missing collection and 409
	// for a conflicting create; both fold into the store sentinels so
	// callers get the same absence semantics as the embedded backend.
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("qdrant %s %s: %w", method, req.URL.Path, ErrCollectionNotFound)
	case http.StatusConflict:
		return fmt.Errorf("qdrant %s %s: %w", method, req.URL.Path, ErrCollectionExists)
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s failed: status=%d, body=%s",
			method, req.URL.Path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (q *QdrantStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

// Qdrant API types

type qdrantPoint struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}

type qdrantScoredPoint struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}
