// Package tools defines the built-in tools the research stages offer to the
// model. These tools are never executed remotely: the workflow reads their
// arguments as structured output (scope, supervisor) or answers them locally
// (think_tool).
package tools

import "github.com/mfateev/temporal-deep-research/internal/models"

// Built-in tool names.
const (
	ClarifyWithUser  = "clarify_with_user"
	ResearchQuestion = "research_question"
	ConductResearch  = "conduct_research"
	ThinkTool        = "think_tool"
	ResearchComplete = "research_complete"
)

// ToolSpec defines the specification for a tool (sent to LLM in prompt).
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	// Items describes array elements when Type is "array".
	Items map[string]interface{} `json:"items,omitempty"`
}

// ToDeclaration converts the spec into the provider-neutral declaration
// carried by LLM requests.
func (s ToolSpec) ToDeclaration() models.ToolDeclaration {
	properties := make(map[string]interface{}, len(s.Parameters))
	required := make([]string, 0)
	for _, p := range s.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return models.ToolDeclaration{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: schema,
	}
}
