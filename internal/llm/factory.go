package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/loregraph/internal/config"
)

// ollamaPlaceholderKey is sent to Ollama, which ignores the key but the
// OpenAI client insists on one.
const ollamaPlaceholderKey = "ollama"

// NewClient builds the configured provider. An empty provider disables
// summarization and yields a nil client without error.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case "":
		return nil, nil

	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "ollama":
		// Ollama is served through its OpenAI-compatible endpoint.
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = ollamaPlaceholderKey
		}
		return NewOpenAIClient(apiKey, cfg.Model, ollamaBaseURL(cfg.BaseURL)), nil

	case "claude", "anthropic":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

func ollamaBaseURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}
