// Package llm provides LLM client integrations.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

// LLMRequest represents one chat-completion request.
type LLMRequest struct {
	Conversation []models.ConversationTurn `json:"conversation"`
	Tools        []models.ToolDeclaration  `json:"tools,omitempty"`
	SystemPrompt string                    `json:"system_prompt,omitempty"`
	ModelConfig  models.ModelConfig        `json:"model_config"`
}

// LLMResponse is the single assistant turn produced by a request.
type LLMResponse struct {
	Turn         models.ConversationTurn `json:"turn"`
	FinishReason models.FinishReason     `json:"finish_reason"`
	TokenUsage   models.TokenUsage       `json:"token_usage"`
}

// LLMClient is the interface for LLM providers.
type LLMClient interface {
	Call(ctx context.Context, request LLMRequest) (LLMResponse, error)
}

// classifyByStatusCode maps an HTTP status code to the appropriate ActivityError.
// Shared by all provider error classifiers.
//
// Classification:
//   - 429 (Too Many Requests): rate limit, retryable with delay
//   - 408 (Request Timeout), 409 (Conflict): transient, retryable
//   - Other 4xx: fatal client error, non-retryable (e.g., 400, 401, 403, 404)
//   - 5xx: transient server error, retryable
func classifyByStatusCode(statusCode int, err error) *models.ActivityError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return models.NewAPILimitError(fmt.Sprintf("rate limit (%d): %v", statusCode, err))
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusConflict:
		return models.NewTransientError(fmt.Sprintf("retryable error (%d): %v", statusCode, err))
	case statusCode >= 400 && statusCode < 500:
		return models.NewFatalError(fmt.Sprintf("client error (%d): %v", statusCode, err))
	case statusCode >= 500:
		return models.NewTransientError(fmt.Sprintf("server error (%d): %v", statusCode, err))
	default:
		return models.NewTransientError(fmt.Sprintf("unexpected status (%d): %v", statusCode, err))
	}
}

// schemaParts splits a JSON Schema object into its properties and required
// lists. A nil or property-less schema yields an empty object schema.
func schemaParts(schema map[string]interface{}) (map[string]interface{}, []string) {
	properties, _ := schema["properties"].(map[string]interface{})
	if properties == nil {
		properties = map[string]interface{}{}
	}
	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = append(required, r...)
	case []interface{}:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	return properties, required
}

// objectSchema returns schema as a complete JSON Schema object.
func objectSchema(schema map[string]interface{}) map[string]interface{} {
	properties, required := schemaParts(schema)
	out := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}
