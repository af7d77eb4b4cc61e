package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// HuggingFaceEmbedder implements Embedder using the HuggingFace Inference
// API. The serverless endpoint returns either a flat vector or a
// nested batch; both shapes are handled.
type HuggingFaceEmbedder struct {
	client    *http.Client
	apiKey    string
	apiBase   string
	model     string
	dimension int
}

// HuggingFaceConfig holds configuration for the HuggingFace embedder.
type HuggingFaceConfig struct {
	APIKey    string
	APIBase   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// DefaultHuggingFaceConfig returns sensible defaults for the HuggingFace
// embedder.
func DefaultHuggingFaceConfig() HuggingFaceConfig {
	return HuggingFaceConfig{
		APIBase:   "https://router.huggingface.co/hf-inference/models",
		Model:     "BAAI/bge-small-en-v1.5",
		Dimension: 384,
		Timeout:   60 * time.Second,
	}
}

// NewHuggingFaceEmbedder creates a new HuggingFace Inference API embedder.
func NewHuggingFaceEmbedder(cfg HuggingFaceConfig) (*HuggingFaceEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface api_key is required")
	}
	def := DefaultHuggingFaceConfig()
	if cfg.APIBase == "" {
		cfg.APIBase = def.APIBase
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = def.Dimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &HuggingFaceEmbedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:    cfg.APIKey,
		apiBase:   cfg.APIBase,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := hfEmbeddingRequest{Inputs: text}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", e.apiBase, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Flat vector first, then the nested batch shape.
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(nested) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return nested[0], nil
}

// EmbedBatch generates embeddings for multiple texts. The inference API is
// called once per text; it has no stable batch contract across models.
func (e *HuggingFaceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Model returns the embedding model name.
func (e *HuggingFaceEmbedder) Model() string {
	return e.model
}

// Dimension returns the embedding dimension.
func (e *HuggingFaceEmbedder) Dimension() int {
	return e.dimension
}

type hfEmbeddingRequest struct {
	Inputs string `json:"inputs"`
}
