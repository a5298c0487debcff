// Package models contains shared types for the temporal-deep-research project.
//
// Everything here crosses a Temporal payload boundary (workflow input, activity
// input/output, query results), so all types are plain JSON-serializable structs.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by an assistant turn.
// Arguments holds the raw JSON object produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the raw JSON arguments into a map.
// An empty argument string decodes to an empty map.
func (c ToolCall) ParseArguments() (map[string]interface{}, error) {
	args := make(map[string]interface{})
	if strings.TrimSpace(c.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool call %s (%s): %w", c.ID, c.Name, err)
	}
	return args, nil
}

// StringArgument returns the named argument as a trimmed string, or "" when
// the arguments are malformed or the field is missing or not a string.
func (c ToolCall) StringArgument(key string) string {
	args, err := c.ParseArguments()
	if err != nil {
		return ""
	}
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// ToolResult answers exactly one ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ConversationTurn is one immutable entry in a conversation.
//
// Field usage by role:
//
//	user:      Content
//	assistant: Content, ToolCalls
//	tool:      Content, ToolCallID, Name
type ConversationTurn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// UserTurn builds a user turn.
func UserTurn(content string) ConversationTurn {
	return ConversationTurn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn without tool calls.
func AssistantTurn(content string) ConversationTurn {
	return ConversationTurn{Role: RoleAssistant, Content: content}
}

// ToolResultTurn converts a tool result into the turn that carries it back
// to the model.
func ToolResultTurn(result ToolResult) ConversationTurn {
	return ConversationTurn{
		Role:       RoleTool,
		Content:    result.Content,
		ToolCallID: result.ToolCallID,
		Name:       result.Name,
		IsError:    result.IsError,
	}
}

// HasToolCalls reports whether the turn requests any tool invocations.
func (t ConversationTurn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// ToolDeclaration describes a tool the model may call.
// InputSchema is a JSON Schema object.
type ToolDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// FindTool returns the declaration with the given name.
func FindTool(decls []ToolDeclaration, name string) (ToolDeclaration, bool) {
	for _, d := range decls {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDeclaration{}, false
}

// BufferString renders turns as "Role: content" lines, the format used when a
// whole conversation is embedded into a single prompt.
func BufferString(turns []ConversationTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t.Role {
		case RoleUser:
			b.WriteString("Human: ")
		case RoleAssistant:
			b.WriteString("AI: ")
		case RoleTool:
			b.WriteString("Tool: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

// FinishReason indicates why the LLM stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
