package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

// Credentials holds provider API keys. Local providers need none; the
// OpenAI-compatible servers accept any non-empty key.
type Credentials struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// MultiProviderClient implements LLMClient by dispatching to the appropriate
// provider based on the ModelConfig.Provider field.
//
// This allows a single activity instance to serve every stage even when the
// stages are configured with different providers.
type MultiProviderClient struct {
	creds     Credentials
	anthropic *AnthropicClient

	mu     sync.Mutex
	openai map[string]*OpenAIClient // keyed by base URL, "" for api.openai.com
}

// NewMultiProviderClient creates a client that can dispatch to multiple providers.
func NewMultiProviderClient(creds Credentials) *MultiProviderClient {
	return &MultiProviderClient{
		creds:     creds,
		anthropic: NewAnthropicClient(creds.AnthropicAPIKey),
		openai:    make(map[string]*OpenAIClient),
	}
}

// Call dispatches to the appropriate provider based on ModelConfig.Provider.
func (c *MultiProviderClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	switch request.ModelConfig.Provider {
	case models.ProviderOpenAI, "":
		return c.openAIFor("", c.creds.OpenAIAPIKey).Call(ctx, request)
	case models.ProviderAnthropic:
		return c.anthropic.Call(ctx, request)
	case models.ProviderLMStudio, models.ProviderOllama:
		if request.ModelConfig.BaseURL == "" {
			return LLMResponse{}, models.NewFatalError(fmt.Sprintf("provider %s requires a base URL", request.ModelConfig.Provider))
		}
		return c.openAIFor(request.ModelConfig.BaseURL, request.ModelConfig.Provider).Call(ctx, request)
	default:
		return LLMResponse{}, models.NewFatalError(fmt.Sprintf(
			"unsupported LLM provider: %s (supported: openai, anthropic, lmstudio, ollama)", request.ModelConfig.Provider))
	}
}

func (c *MultiProviderClient) openAIFor(baseURL, apiKey string) *OpenAIClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.openai[baseURL]; ok {
		return client
	}
	client := NewOpenAIClient(apiKey, baseURL)
	c.openai[baseURL] = client
	return client
}
