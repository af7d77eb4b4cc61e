package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
)

const openRouterName = "openrouter"

// openRouterFallbackModels are free-tier models tried in order when the
// primary model is rate limited.
var openRouterFallbackModels = []string{
	"google/gemma-3-27b-it:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"nousresearch/hermes-3-llama-3.1-405b:free",
}

// OpenRouterProvider completes prompts via OpenRouter's OpenAI-compatible
// API. One API key fronts many models; when the primary model is rate
// limited the call walks an ordered fallback list before giving up.
type OpenRouterProvider struct {
	chat      *chatClient
	model     string
	fallbacks []string
	siteName  string
	logger    *slog.Logger
}

// OpenRouterConfig holds configuration for the OpenRouter provider.
type OpenRouterConfig struct {
	APIKey   string
	APIBase  string
	Model    string
	SiteName string
	Timeout  time.Duration
	Logger   *slog.Logger

	// FallbackModels overrides the built-in fallback list.
	FallbackModels []string
}

// NewOpenRouterProvider creates an OpenRouter provider.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api_key is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.3-70b-instruct:free"
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "promptcache"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fallbacks := cfg.FallbackModels
	if fallbacks == nil {
		fallbacks = openRouterFallbackModels
	}

	site := strings.ToLower(strings.ReplaceAll(cfg.SiteName, " ", "-"))
	return &OpenRouterProvider{
		chat: &chatClient{
			client:   &http.Client{Timeout: cfg.Timeout},
			provider: openRouterName,
			apiBase:  cfg.APIBase,
			apiKey:   cfg.APIKey,
			headers: map[string]string{
				"HTTP-Referer": fmt.Sprintf("https://%s.app", site),
				"X-Title":      cfg.SiteName,
			},
		},
		model:     cfg.Model,
		fallbacks: fallbacks,
		siteName:  cfg.SiteName,
		logger:    logger,
	}, nil
}

// Name identifies the provider.
func (o *OpenRouterProvider) Name() string {
	return openRouterName
}

// Complete tries the primary model, then each fallback model. Rate limits
// and transport failures advance to the next model; any other backend error
// fails the call immediately.
func (o *OpenRouterProvider) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	models := make([]string, 0, 1+len(o.fallbacks))
	models = append(models, o.model)
	for _, m := range o.fallbacks {
		if m != o.model {
			models = append(models, m)
		}
	}

	var lastErr error
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return "", perrors.NewTransportError(openRouterName, err)
		}

		text, err := o.chat.complete(ctx, model, prompt, systemPrompt)
		if err == nil {
			return text, nil
		}

		var pe *perrors.ProviderError
		if errors.As(err, &pe) && (pe.RateLimited() || pe.Type == perrors.TypeTransport) {
			o.logger.Warn("openrouter model failed, trying next", "model", model, "type", pe.Type)
			lastErr = err
			continue
		}
		return "", err
	}

	return "", fmt.Errorf("all openrouter models exhausted: %w", lastErr)
}
