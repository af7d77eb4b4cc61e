package vector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQdrantStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should create collection with cosine distance", func(t *testing.T) {
		var createBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/collections/project_a/exists":
				json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"exists": false}})
			case "/collections/project_a":
				assert.Equal(t, http.MethodPut, r.Method)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
				json.NewEncoder(w).Encode(map[string]any{"result": true})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		require.NoError(t, store.CreateCollection(ctx, "project_a", 384))

		vectors := createBody["vectors"].(map[string]any)
		assert.Equal(t, "Cosine", vectors["distance"])
		assert.Equal(t, float64(384), vectors["size"])
	})

	t.Run("should report existing collection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"exists": true}})
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		err = store.CreateCollection(ctx, "project_a", 384)
		assert.ErrorIs(t, err, ErrCollectionExists)
	})

	t.Run("should map search scores to similarity", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/collections/project_a/points/search", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{"id": "p1", "score": 0.97, "payload": map[string]any{"prompt": "hi", "answer": "yo"}},
					{"id": "p2", "score": 0.42, "payload": map[string]any{"prompt": "lo"}},
				},
			})
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		results, err := store.Query(ctx, "project_a", []float64{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "p1", results[0].ID)
		assert.InDelta(t, 0.97, results[0].Similarity, 1e-9)
		assert.Equal(t, "yo", results[0].Payload.Answer)
	})

	t.Run("should send api key header", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("api-key"))
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}})
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL, APIKey: "secret"})
		require.NoError(t, err)
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("should return nil for missing point", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		p, err := store.Fetch(ctx, "project_a", "ghost")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("should page through scroll results", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/collections/project_a/points/scroll", r.URL.Path)
			calls++
			if calls == 1 {
				json.NewEncoder(w).Encode(map[string]any{
					"result": map[string]any{
						"points":           []map[string]any{{"id": "p1", "payload": map[string]any{}}},
						"next_page_offset": "p2",
					},
				})
				return
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "p2", body["offset"])
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points":           []map[string]any{{"id": "p2", "payload": map[string]any{}}},
					"next_page_offset": nil,
				},
			})
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		points, err := store.List(ctx, "project_a")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		require.Len(t, points, 2)
		assert.Equal(t, "p1", points[0].ID)
		assert.Equal(t, "p2", points[1].ID)
	})

	t.Run("should map 404 to missing collection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		_, err = store.Query(ctx, "project_ghost", []float64{1, 0}, 5)
		assert.ErrorIs(t, err, ErrCollectionNotFound)

		_, err = store.List(ctx, "project_ghost")
		assert.ErrorIs(t, err, ErrCollectionNotFound)

		_, err = store.Count(ctx, "project_ghost")
		assert.ErrorIs(t, err, ErrCollectionNotFound)

		err = store.SetPayload(ctx, "project_ghost", "p1", Payload{})
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("should map create conflict to collection exists", func(t *testing.T) {
		// The exists pre-check can race a concurrent create; the 409 from
		// the PUT must still come back as the sentinel.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/collections/project_a/exists":
				json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"exists": false}})
			case "/collections/project_a":
				http.Error(w, `{"status":{"error":"already exists"}}`, http.StatusConflict)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		err = store.CreateCollection(ctx, "project_a", 384)
		assert.ErrorIs(t, err, ErrCollectionExists)
	})

	t.Run("should surface backend failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		store, err := NewQdrantStore(QdrantConfig{APIBase: srv.URL})
		require.NoError(t, err)

		_, err = store.Count(ctx, "project_a")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status=500")
	})
}
