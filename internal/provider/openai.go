package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
)

const openAIName = "openai"

// OpenAIProvider completes prompts against any OpenAI-compatible
// chat-completions endpoint. Enterprise gateways that speak the same wire
// format work unchanged by pointing APIBase at them.
type OpenAIProvider struct {
	chat  *chatClient
	model string
}

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &OpenAIProvider{
		chat: &chatClient{
			client:   &http.Client{Timeout: cfg.Timeout},
			provider: openAIName,
			apiBase:  cfg.APIBase,
			apiKey:   cfg.APIKey,
		},
		model: cfg.Model,
	}, nil
}

// Name identifies the provider.
func (o *OpenAIProvider) Name() string {
	return openAIName
}

// Complete sends the prompt through the chat-completions endpoint.
func (o *OpenAIProvider) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return o.chat.complete(ctx, o.model, prompt, systemPrompt)
}

// chatClient is the shared OpenAI-compatible chat-completions transport.
type chatClient struct {
	client   *http.Client
	provider string
	apiBase  string
	apiKey   string
	headers  map[string]string
}

func (c *chatClient) complete(ctx context.Context, model, prompt, systemPrompt string) (string, error) {
	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   2048,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.apiBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", perrors.NewTransportError(c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", perrors.NewStatusError(c.provider, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty completion from %s", c.provider)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// OpenAI-compatible wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
