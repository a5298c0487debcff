package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// Activity names, as registered by the worker.
const (
	activityExecuteLLMCall     = "ExecuteLLMCall"
	activityListTools          = "ListTools"
	activityInvokeTool         = "InvokeTool"
	activityLoadWorkerGuidance = "LoadWorkerGuidance"
)

// executeLLM runs one model call. Transient provider failures are retried
// by the activity policy; what comes back here is final.
func executeLLM(ctx workflow.Context, input activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
	llmCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var out activities.LLMActivityOutput
	if err := workflow.ExecuteActivity(llmCtx, activityExecuteLLMCall, input).Get(ctx, &out); err != nil {
		return out, err
	}
	out.Turn.ToolCalls = assignMissingCallIDs(out.Turn.ToolCalls)
	return out, nil
}

// assignMissingCallIDs gives every call without an ID a "call_<index>" ID
// that no other call of the turn uses. Some local servers omit the IDs;
// repeated non-empty IDs are left for the history to reject.
func assignMissingCallIDs(calls []models.ToolCall) []models.ToolCall {
	taken := make(map[string]bool, len(calls))
	for _, call := range calls {
		taken[call.ID] = true
	}
	for i := range calls {
		if calls[i].ID != "" {
			continue
		}
		id := fmt.Sprintf("call_%d", i)
		for n := 1; taken[id]; n++ {
			id = fmt.Sprintf("call_%d_%d", i, n)
		}
		calls[i].ID = id
		taken[id] = true
	}
	return calls
}

// listTools fetches the current tool list from the worker's gateway.
func listTools(ctx workflow.Context) ([]models.ToolDeclaration, error) {
	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var out activities.ListToolsOutput
	if err := workflow.ExecuteActivity(listCtx, activityListTools).Get(ctx, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// invokeTool executes one tool call. Tool calls may have side effects, so
// they are attempted once.
func invokeTool(ctx workflow.Context, call models.ToolCall) (activities.InvokeToolOutput, error) {
	toolCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var out activities.InvokeToolOutput
	err := workflow.ExecuteActivity(toolCtx, activityInvokeTool, activities.InvokeToolInput{
		Name:      call.Name,
		Arguments: call.Arguments,
	}).Get(ctx, &out)
	return out, err
}

// isToolResolutionError reports whether an InvokeTool failure means the
// tool name matched no tool.
func isToolResolutionError(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == models.AppErrorToolResolution
}

// loadWorkerGuidance reads RESEARCH.md guidance from the worker's workspace.
// Non-fatal: failures yield no guidance.
func loadWorkerGuidance(ctx workflow.Context) string {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})

	var out activities.LoadWorkerGuidanceOutput
	if err := workflow.ExecuteActivity(actCtx, activityLoadWorkerGuidance).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to load worker guidance", "error", err)
		return ""
	}
	return out.Guidance
}
