package workflow

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// report writes the final report from the brief and the merged notes, with
// the gateway's tools bound.
//
// Exactly one generation pass runs. The generating turn's text is the
// report; its tool calls are side effects executed afterwards, in order,
// and never trigger a second generation.
func (r *researchRun) report(ctx workflow.Context) (StageUpdate, error) {
	logger := workflow.GetLogger(ctx)

	available, err := listTools(ctx)
	if err != nil {
		logger.Warn("Tool listing failed, writing the report without tools", "error", err)
		available = nil
	}

	prompt := instructions.ReportPrompt(
		r.state.ResearchBrief,
		strings.Join(r.state.Notes, "\n"),
		instructions.FormatDate(workflow.Now(ctx)),
		r.guidance)

	out, err := r.callLLM(ctx, activities.LLMActivityInput{
		Purpose:      activities.PurposeReport,
		Conversation: []models.ConversationTurn{models.UserTurn(prompt)},
		Tools:        available,
		ModelConfig:  r.config.Models.Report,
	})
	if err != nil {
		return StageUpdate{}, fmt.Errorf("generate report: %w", err)
	}

	turn := out.Turn
	finalReport := turn.Content
	update := StageUpdate{
		Stage:       stageReport,
		Messages:    []models.ConversationTurn{turn},
		FinalReport: &finalReport,
	}
	if !turn.HasToolCalls() {
		return update, nil
	}

	results := r.executeReportTools(ctx, turn.ToolCalls)
	for _, result := range results {
		update.Messages = append(update.Messages, models.ToolResultTurn(result))
	}
	r.toolResults = append(r.toolResults, results...)
	return update, nil
}

// executeReportTools runs the calls sequentially in the order listed and
// returns one result per call, in the same order. Names are resolved
// against a fresh tool listing. Failures never abort the report: an
// unresolved name or a failed invocation becomes an error result.
func (r *researchRun) executeReportTools(ctx workflow.Context, calls []models.ToolCall) []models.ToolResult {
	logger := workflow.GetLogger(ctx)

	current, listErr := listTools(ctx)
	if listErr != nil {
		logger.Warn("Tool listing failed before executing report tools", "error", listErr)
	}

	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		result := models.ToolResult{ToolCallID: call.ID, Name: call.Name}
		r.status.ToolCalls++

		if _, ok := models.FindTool(current, call.Name); !ok {
			err := error(&models.ToolResolutionError{Name: call.Name})
			if listErr != nil {
				err = fmt.Errorf("%w (tool listing failed: %v)", err, listErr)
			}
			logger.Error("Report tool call not resolved", "tool", call.Name, "call_id", call.ID)
			result.Content = err.Error()
			result.IsError = true
			results = append(results, result)
			continue
		}

		out, err := invokeTool(ctx, call)
		switch {
		case err != nil && isToolResolutionError(err):
			logger.Error("Report tool call not resolved", "tool", call.Name, "call_id", call.ID)
			result.Content = (&models.ToolResolutionError{Name: call.Name}).Error()
			result.IsError = true
		case err != nil:
			logger.Warn("Report tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
			result.Content = (&models.ToolExecutionError{Name: call.Name, Message: err.Error()}).Error()
			result.IsError = true
		default:
			result.Content = out.Content
			result.IsError = out.IsError
		}
		results = append(results, result)
	}
	return results
}
