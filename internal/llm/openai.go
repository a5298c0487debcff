package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

// OpenAIClient implements LLMClient using OpenAI's Chat Completions API.
//
// Chat Completions is the one API the local OpenAI-compatible servers
// (LM Studio, Ollama) also speak, so the same client serves all three.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI client. An empty baseURL targets the
// OpenAI API; otherwise requests go to the given OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(append(base, opts...)...)}
}

// Call sends a request to the Chat Completions API and returns the assistant turn.
func (c *OpenAIClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(request.ModelConfig.Model),
		Messages: c.buildMessages(request),
	}
	if request.ModelConfig.Temperature > 0 {
		params.Temperature = openai.Float(request.ModelConfig.Temperature)
	}
	if request.ModelConfig.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(request.ModelConfig.MaxTokens))
	}
	if len(request.Tools) > 0 {
		params.Tools = c.buildToolDefinitions(request.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, models.NewTransientError("OpenAI API returned no choices")
	}

	turn, finishReason := c.parseChoice(resp.Choices[0])
	return LLMResponse{
		Turn:         turn,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildMessages converts the request into Chat Completions messages.
//
// Role mapping:
//   - SystemPrompt → system message (first)
//   - user → user message
//   - assistant → assistant message with tool_calls
//   - tool → tool message keyed by ToolCallID
func (c *OpenAIClient) buildMessages(request LLMRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(request.Conversation)+1)

	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}

	for _, turn := range request.Conversation {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))

		case models.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if turn.Content != "" {
				assistant.Content.OfString = openai.String(turn.Content)
			}
			for _, call := range turn.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case models.RoleTool:
			messages = append(messages, openai.ToolMessage(turn.Content, turn.ToolCallID))
		}
	}

	return messages
}

// parseChoice converts the first choice into one assistant turn.
func (c *OpenAIClient) parseChoice(choice openai.ChatCompletionChoice) (models.ConversationTurn, models.FinishReason) {
	turn := models.ConversationTurn{
		Role:    models.RoleAssistant,
		Content: choice.Message.Content,
	}
	for i, call := range choice.Message.ToolCalls {
		if call.Type != "" && call.Type != "function" {
			continue
		}
		id := call.ID
		// LM Studio and Ollama may omit the ID.
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	finishReason := models.FinishReasonStop
	switch choice.FinishReason {
	case "length":
		finishReason = models.FinishReasonLength
	case "content_filter":
		finishReason = models.FinishReasonContentFilter
	case "tool_calls", "function_call":
		finishReason = models.FinishReasonToolCalls
	}
	// Some OpenAI-compatible servers report "stop" alongside tool calls.
	if turn.HasToolCalls() {
		finishReason = models.FinishReasonToolCalls
	}

	return turn, finishReason
}

// buildToolDefinitions converts tool declarations to function tools.
func (c *OpenAIClient) buildToolDefinitions(decls []models.ToolDeclaration) []openai.ChatCompletionToolUnionParam {
	toolDefs := make([]openai.ChatCompletionToolUnionParam, 0, len(decls))
	for _, decl := range decls {
		toolDefs = append(toolDefs, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        decl.Name,
			Description: openai.String(decl.Description),
			Parameters:  shared.FunctionParameters(objectSchema(decl.InputSchema)),
		}))
	}
	return toolDefs
}

// classifyError categorizes an OpenAI API error using the HTTP status code
// when available, falling back to message-based heuristics.
func classifyError(err error) error {
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	// Non-typed errors (network failures, local server still loading a model).
	if strings.Contains(errMsg, "rate_limit") || strings.Contains(errMsg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("OpenAI API error: %v", err))
}
