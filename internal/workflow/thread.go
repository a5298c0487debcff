package workflow

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/history"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/tools"
)

// ResearchThreadInput is the input of ResearchThreadWorkflow.
type ResearchThreadInput struct {
	Index   int                   `json:"index"`
	SubTask string                `json:"sub_task"`
	Config  models.ResearchConfig `json:"config"`
}

// ResearchThreadResult is the terminal state of a research thread.
// A failed thread completes normally with Failed set; the supervisor turns
// it into a failure note.
type ResearchThreadResult struct {
	Notes      []string          `json:"notes,omitempty"`
	Failed     bool              `json:"failed,omitempty"`
	Error      string            `json:"error,omitempty"`
	Iterations int               `json:"iterations"`
	ToolCalls  int               `json:"tool_calls"`
	TokenUsage models.TokenUsage `json:"token_usage"`
}

// threadRun is the private state of one research thread. Nothing in it is
// visible to sibling threads.
type threadRun struct {
	input  ResearchThreadInput
	config models.ResearchConfig
	conv   history.ContextManager
	result ResearchThreadResult
}

// ResearchThreadWorkflow researches one sub-task in an isolated conversation:
// a bounded tool-use loop followed by one compress call that condenses the
// conversation into a single note.
func ResearchThreadWorkflow(ctx workflow.Context, input ResearchThreadInput) (ResearchThreadResult, error) {
	logger := workflow.GetLogger(ctx)
	t := &threadRun{
		input:  input,
		config: input.Config.WithDefaults(),
		conv:   history.NewInMemoryHistory(models.UserTurn(input.SubTask)),
	}

	logger.Info("Research thread started", "index", input.Index, "sub_task_len", len(input.SubTask))

	if err := t.research(ctx); err != nil {
		logger.Warn("Research thread failed", "index", input.Index, "error", err)
		t.result.Failed = true
		t.result.Error = err.Error()
		return t.result, nil
	}

	note, err := t.compress(ctx)
	if err != nil {
		logger.Warn("Research thread failed to compress findings", "index", input.Index, "error", err)
		t.result.Failed = true
		t.result.Error = err.Error()
		return t.result, nil
	}
	t.result.Notes = []string{note}

	logger.Info("Research thread completed",
		"index", input.Index,
		"iterations", t.result.Iterations,
		"tool_calls", t.result.ToolCalls)
	return t.result, nil
}

// research runs the tool-use loop until the model answers without calling
// a tool. Exceeding MaxResearcherIterations is a failure.
func (t *threadRun) research(ctx workflow.Context) error {
	available, err := listTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	decls := append(available, tools.Declarations(tools.GroupResearcher)...)
	date := instructions.FormatDate(workflow.Now(ctx))
	systemPrompt := instructions.ResearcherPrompt(date, t.config.MaxResearcherIterations)

	for t.result.Iterations < t.config.MaxResearcherIterations {
		t.result.Iterations++

		out, err := executeLLM(ctx, activities.LLMActivityInput{
			Purpose:      activities.PurposeResearch,
			Conversation: t.conv.GetForPrompt(),
			Tools:        decls,
			SystemPrompt: systemPrompt,
			ModelConfig:  t.config.Models.Research,
		})
		if err != nil {
			return fmt.Errorf("model call: %w", err)
		}
		t.result.TokenUsage = t.result.TokenUsage.Add(out.TokenUsage)

		if err := t.conv.AddTurn(out.Turn); err != nil {
			return fmt.Errorf("malformed model output: %w", err)
		}
		workflow.GetLogger(ctx).Debug("Research thread turn",
			"index", t.input.Index,
			"iteration", t.result.Iterations,
			"turns", t.conv.Len(),
			"estimated_tokens", t.conv.EstimateTokenCount())
		if !out.Turn.HasToolCalls() {
			return nil
		}

		// Calls within a thread are strictly sequential.
		for _, call := range t.conv.PendingToolCalls() {
			result, err := t.execute(ctx, call, decls)
			if err != nil {
				return err
			}
			if err := t.conv.AddTurn(models.ToolResultTurn(result)); err != nil {
				return fmt.Errorf("record tool result: %w", err)
			}
		}
	}
	return fmt.Errorf("%s: still calling tools after %d iterations",
		models.AppErrorIterationsExhausted, t.config.MaxResearcherIterations)
}

// execute answers one tool call. think_tool is answered locally; unknown
// names and tool-reported failures come back as error results for the
// model to react to. An unreachable tool server fails the thread.
func (t *threadRun) execute(ctx workflow.Context, call models.ToolCall, decls []models.ToolDeclaration) (models.ToolResult, error) {
	result := models.ToolResult{ToolCallID: call.ID, Name: call.Name}

	if call.Name == tools.ThinkTool {
		result.Content = reflectionResult(call)
		return result, nil
	}
	if _, ok := models.FindTool(decls, call.Name); !ok {
		result.Content = (&models.ToolResolutionError{Name: call.Name}).Error()
		result.IsError = true
		return result, nil
	}

	t.result.ToolCalls++
	out, err := invokeTool(ctx, call)
	if err != nil {
		if isToolResolutionError(err) {
			result.Content = (&models.ToolResolutionError{Name: call.Name}).Error()
			result.IsError = true
			return result, nil
		}
		return result, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	result.Content = out.Content
	result.IsError = out.IsError
	return result, nil
}

// compress condenses the thread's conversation into one note. When the
// compress call returns nothing, the model's final answer is used instead.
func (t *threadRun) compress(ctx workflow.Context) (string, error) {
	turns := t.conv.GetForPrompt()
	finalAnswer := strings.TrimSpace(turns[len(turns)-1].Content)

	out, err := executeLLM(ctx, activities.LLMActivityInput{
		Purpose:      activities.PurposeCompress,
		Conversation: append(turns, models.UserTurn(instructions.CompressRequest)),
		SystemPrompt: instructions.CompressPrompt(instructions.FormatDate(workflow.Now(ctx))),
		ModelConfig:  t.config.Models.Compress,
	})
	if err != nil {
		return "", fmt.Errorf("compress findings: %w", err)
	}
	t.result.TokenUsage = t.result.TokenUsage.Add(out.TokenUsage)

	note := firstNonEmpty(strings.TrimSpace(out.Turn.Content), finalAnswer)
	if note == "" {
		return "", fmt.Errorf("research produced no findings")
	}
	return note, nil
}

// reflectionResult acknowledges a think_tool call.
func reflectionResult(call models.ToolCall) string {
	return "Reflection recorded: " + call.StringArgument("reflection")
}
