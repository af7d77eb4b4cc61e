package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/promptcache/internal/metrics"
	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
)

const geminiName = "gemini"

// GeminiProvider completes prompts via the Google Gemini REST API. It holds
// multiple API keys in a rotating keyring; each call tries every key at most
// once, skipping past rate limits and network failures.
type GeminiProvider struct {
	client  *http.Client
	keyring *Keyring
	apiBase string
	model   string
	logger  *slog.Logger
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKeys []string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewGeminiProvider creates a Gemini provider with key rotation.
func NewGeminiProvider(cfg GeminiConfig) (*GeminiProvider, error) {
	keyring, err := NewKeyring(cfg.APIKeys...)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiProvider{
		client:  &http.Client{Timeout: cfg.Timeout},
		keyring: keyring,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		logger:  logger,
	}, nil
}

// Name identifies the provider.
func (g *GeminiProvider) Name() string {
	return geminiName
}

// Complete sends the prompt to Gemini, rotating through API keys. Rate
// limits and transport failures advance to the next key; any other backend
// error fails the call immediately. Once every key has been tried the call
// returns ErrCredentialsExhausted wrapping the last failure.
func (g *GeminiProvider) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	payload := g.buildPayload(prompt, systemPrompt)
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < g.keyring.Len(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", perrors.NewTransportError(geminiName, err)
		}

		key := g.keyring.Next()
		text, err := g.generate(ctx, key, bodyBytes)
		if err == nil {
			return text, nil
		}

		var pe *perrors.ProviderError
		if errors.As(err, &pe) && (pe.RateLimited() || pe.Type == perrors.TypeTransport) {
			reason := "rate_limit"
			if pe.Type == perrors.TypeTransport {
				reason = "transport"
			}
			metrics.CredentialRotations.WithLabelValues(geminiName, reason).Inc()
			g.logger.Warn("gemini credential failed, rotating",
				"attempt", attempt+1, "keys", g.keyring.Len(), "reason", reason)
			lastErr = err
			continue
		}
		return "", err
	}

	return "", fmt.Errorf("%w: %w", perrors.ErrCredentialsExhausted, lastErr)
}

func (g *GeminiProvider) generate(ctx context.Context, key string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.apiBase, g.model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", perrors.NewTransportError(geminiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", perrors.NewStatusError(geminiName, resp.StatusCode, string(respBody))
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty completion from gemini")
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// buildPayload assembles the Gemini-native conversation. System instructions
// are injected as a user turn with a model acknowledgment, which the v1beta
// generateContent endpoint honors across models.
func (g *GeminiProvider) buildPayload(prompt, systemPrompt string) geminiRequest {
	var contents []geminiContent
	if systemPrompt != "" {
		contents = append(contents,
			geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "[System Instruction]\n" + systemPrompt}},
			},
			geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: "Understood. I will follow those instructions."}},
			},
		)
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: prompt}},
	})

	return geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
		},
	}
}

// Gemini API types

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}
