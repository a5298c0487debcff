package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

// AnthropicClient implements LLMClient using Anthropic's Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic client. Extra options (base URL,
// HTTP client) are passed through to the SDK.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// Call sends a request to Anthropic and returns the assistant turn.
func (c *AnthropicClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	messages, err := c.buildMessages(request)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("failed to build messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.ModelConfig.Model),
		MaxTokens: int64(maxTokensOrDefault(request.ModelConfig.MaxTokens)),
		Messages:  messages,
	}
	if request.SystemPrompt != "" {
		// The system prompt is identical across a stage's iterations, so it is
		// marked cacheable.
		params.System = []anthropic.TextBlockParam{{
			Text: request.SystemPrompt,
			CacheControl: anthropic.CacheControlEphemeralParam{
				TTL: anthropic.CacheControlEphemeralTTLTTL5m,
			},
		}}
	}
	if request.ModelConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(request.ModelConfig.Temperature)
	}
	if len(request.Tools) > 0 {
		params.Tools = c.buildToolDefinitions(request.Tools)
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyAnthropicError(err)
	}

	turn, finishReason := c.parseResponse(response)
	return LLMResponse{
		Turn:         turn,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.InputTokens + response.Usage.OutputTokens),
		},
	}, nil
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return models.DefaultMaxTokens
	}
	return n
}

// buildMessages converts the conversation to Anthropic's message format.
//
// Key differences from OpenAI:
// 1. Tool calls are content blocks of the assistant message
// 2. Tool results go in user messages, consecutive results share one message
// 3. System prompt is separate from messages
func (c *AnthropicClient) buildMessages(request LLMRequest) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(request.Conversation))

	for i := 0; i < len(request.Conversation); i++ {
		turn := request.Conversation[i]

		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfText: &anthropic.TextBlockParam{Text: turn.Content},
				}},
			})

		case models.RoleAssistant:
			content := make([]anthropic.ContentBlockParamUnion, 0, 1+len(turn.ToolCalls))
			if turn.Content != "" {
				content = append(content, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: turn.Content},
				})
			}
			for _, call := range turn.ToolCalls {
				input, err := call.ParseArguments()
				if err != nil {
					return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
				}
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: input,
					},
				})
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: content,
				})
			}

		case models.RoleTool:
			content := make([]anthropic.ContentBlockParamUnion, 0)
			for ; i < len(request.Conversation) && request.Conversation[i].Role == models.RoleTool; i++ {
				result := request.Conversation[i]
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: result.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: result.Content},
						}},
						IsError: anthropic.Bool(result.IsError),
					},
				})
			}
			i--
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: content,
			})
		}
	}

	return messages, nil
}

// buildToolDefinitions converts tool declarations to Anthropic tool definitions.
func (c *AnthropicClient) buildToolDefinitions(decls []models.ToolDeclaration) []anthropic.ToolUnionParam {
	toolDefs := make([]anthropic.ToolUnionParam, 0, len(decls))

	for _, decl := range decls {
		properties, required := schemaParts(decl.InputSchema)
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: properties,
		}
		if len(required) > 0 {
			inputSchema.Required = required
		}

		toolDefs = append(toolDefs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: inputSchema,
			},
		})
	}

	return toolDefs
}

// parseResponse converts Anthropic's response into one assistant turn.
// Text blocks are concatenated; tool_use blocks become tool calls in order.
func (c *AnthropicClient) parseResponse(response *anthropic.Message) (models.ConversationTurn, models.FinishReason) {
	turn := models.ConversationTurn{Role: models.RoleAssistant}
	var text []string

	for _, contentBlock := range response.Content {
		switch contentBlock.Type {
		case "text":
			if t := contentBlock.AsText().Text; t != "" {
				text = append(text, t)
			}

		case "tool_use":
			toolBlock := contentBlock.AsToolUse()
			argsJSON, err := json.Marshal(toolBlock.Input)
			if err != nil {
				argsJSON = []byte("{}")
			}
			turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: string(argsJSON),
			})
		}
	}
	turn.Content = strings.Join(text, "\n")

	finishReason := models.FinishReasonStop
	switch response.StopReason {
	case anthropic.StopReasonToolUse:
		finishReason = models.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		finishReason = models.FinishReasonLength
	}
	if turn.HasToolCalls() {
		finishReason = models.FinishReasonToolCalls
	}

	return turn, finishReason
}

// classifyAnthropicError categorizes an Anthropic API error using the HTTP
// status code when available, falling back to message-based heuristics.
func classifyAnthropicError(err error) error {
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "too many tokens") ||
		strings.Contains(errMsg, "prompt is too long") {
		return models.NewContextOverflowError(err.Error())
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	if strings.Contains(errMsg, "rate_limit") || strings.Contains(errMsg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("Anthropic API error: %v", err))
}
