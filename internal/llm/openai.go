package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/nikki/internal/apperr"
)

// Default configuration values for the OpenAI-compatible chat client.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// OpenAIConfig holds configuration for the chat-completions client.
type OpenAIConfig struct {
	// APIKey is the provider API key (required).
	APIKey string
	// BaseURL is the API base URL; any OpenAI-compatible endpoint works
	// (OpenRouter, Ollama, LM Studio, Azure).
	BaseURL string
	// Model is the chat model name.
	Model string
	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// OpenAIGenerator calls the /chat/completions endpoint of an OpenAI-compatible
// API. Failures are classified as external service errors.
type OpenAIGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIGenerator creates a chat client. APIKey is required; everything
// else falls back to defaults.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, apperr.E(apperr.ErrConfiguration, "llm API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIGenerator{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Generate sends a single system+user exchange and returns the model's text.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	jsonBody, err := json.Marshal(chatRequest{Model: g.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", apperr.E(apperr.ErrExternal, "llm request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.E(apperr.ErrExternal, "read llm response: %v", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", apperr.E(apperr.ErrExternal, "decode llm response: %v", err)
	}
	if chatResp.Error != nil {
		return "", apperr.E(apperr.ErrExternal, "llm provider error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.E(apperr.ErrExternal, "llm provider status %d: %s", resp.StatusCode, string(body))
	}
	if len(chatResp.Choices) == 0 {
		return "", apperr.E(apperr.ErrExternal, "llm provider returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// ModelName returns the configured chat model.
func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

// Close is a no-op; the HTTP client needs no cleanup.
func (g *OpenAIGenerator) Close() error {
	return nil
}
