// Package activities contains Temporal activity implementations.
package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/mfateev/temporal-deep-research/internal/llm"
	"github.com/mfateev/temporal-deep-research/internal/metrics"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// Call purposes. They label metrics and logs, and let tests route mocked
// model calls by stage.
const (
	PurposeClarify    = "clarify"
	PurposeBrief      = "brief"
	PurposeSupervisor = "supervisor"
	PurposeResearch   = "research"
	PurposeCompress   = "compress"
	PurposeReport     = "report"
)

// LLMActivityInput is the input for the LLM activity.
type LLMActivityInput struct {
	Purpose      string                    `json:"purpose"`
	Conversation []models.ConversationTurn `json:"conversation"`
	Tools        []models.ToolDeclaration  `json:"tools,omitempty"`
	SystemPrompt string                    `json:"system_prompt,omitempty"`
	ModelConfig  models.ModelConfig        `json:"model_config"`
}

// LLMActivityOutput is the output from the LLM activity: one assistant turn.
type LLMActivityOutput struct {
	Turn         models.ConversationTurn `json:"turn"`
	FinishReason models.FinishReason     `json:"finish_reason"`
	TokenUsage   models.TokenUsage       `json:"token_usage"`
}

// LLMActivities contains LLM-related activities.
type LLMActivities struct {
	client   llm.LLMClient
	profiles *models.ProfileRegistry
	metrics  *metrics.Recorder
}

// NewLLMActivities creates a new LLMActivities instance. A nil registry
// falls back to the built-in profiles; a nil recorder disables metrics.
func NewLLMActivities(client llm.LLMClient, profiles *models.ProfileRegistry, rec *metrics.Recorder) *LLMActivities {
	if profiles == nil {
		profiles = models.NewDefaultRegistry()
	}
	return &LLMActivities{client: client, profiles: profiles, metrics: rec}
}

// ExecuteLLMCall executes one model call and returns the assistant turn.
// The model profile matching the configured provider and model adjusts the
// request before it is sent.
func (a *LLMActivities) ExecuteLLMCall(ctx context.Context, input LLMActivityInput) (LLMActivityOutput, error) {
	logger := activity.GetLogger(ctx)

	profile := a.profiles.Resolve(input.ModelConfig.Provider, input.ModelConfig.Model)
	request := llm.LLMRequest{
		Conversation: input.Conversation,
		Tools:        input.Tools,
		SystemPrompt: profile.SystemPrompt(input.SystemPrompt),
		ModelConfig:  profile.Apply(input.ModelConfig),
	}

	start := time.Now()
	response, err := a.client.Call(ctx, request)
	a.metrics.ObserveLLMCall(input.Purpose, input.ModelConfig.Provider, time.Since(start), response.TokenUsage, err)
	if err != nil {
		logger.Warn("LLM call failed",
			"purpose", input.Purpose,
			"model", input.ModelConfig.String(),
			"error", err)
		return LLMActivityOutput{}, models.WrapActivityError(err)
	}

	logger.Debug("LLM call completed",
		"purpose", input.Purpose,
		"model", input.ModelConfig.String(),
		"tool_calls", len(response.Turn.ToolCalls),
		"finish_reason", response.FinishReason,
		"total_tokens", response.TokenUsage.TotalTokens)

	return LLMActivityOutput{
		Turn:         response.Turn,
		FinishReason: response.FinishReason,
		TokenUsage:   response.TokenUsage,
	}, nil
}
