package workflow

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/history"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/tools"
)

// supervise decides how to split the brief, runs one research thread per
// sub-task and merges their notes in dispatch order.
//
// A failed thread contributes a failure note. The stage fails only when
// every thread failed.
func (r *researchRun) supervise(ctx workflow.Context) (StageUpdate, error) {
	logger := workflow.GetLogger(ctx)

	subTasks := r.decide(ctx)
	logger.Info("Dispatching research threads", "count", len(subTasks))

	results := r.dispatch(ctx, subTasks)

	var notes []string
	failed := 0
	for _, res := range results {
		if res.failure != nil {
			failed++
			notes = append(notes, res.failure.Note())
			continue
		}
		notes = append(notes, res.notes...)
	}

	if failed == len(subTasks) {
		return StageUpdate{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("%s: %d of %d threads failed", models.ErrAllThreadsFailed, failed, len(subTasks)),
			models.AppErrorAllThreadsFailed,
			models.ErrAllThreadsFailed,
			notes)
	}
	if failed > 0 {
		logger.Warn("Some research threads failed", "failed", failed, "total", len(subTasks))
	}
	return StageUpdate{Stage: stageSupervisor, Notes: notes}, nil
}

// decide runs the supervisor conversation until a decision turn, a turn
// that is not only think_tool calls, and returns the sub-tasks it requests.
// Failures and exhausted reflection fall back to a single thread on the
// full brief.
func (r *researchRun) decide(ctx workflow.Context) []string {
	logger := workflow.GetLogger(ctx)
	brief := r.state.ResearchBrief

	var conv history.ContextManager = history.NewInMemoryHistory(models.UserTurn(brief))
	systemPrompt := instructions.WithGuidance(
		instructions.SupervisorPrompt(instructions.FormatDate(workflow.Now(ctx)),
			r.config.MaxConcurrentResearchUnits, r.config.MaxSupervisorIterations),
		r.guidance)
	decls := tools.Declarations(tools.GroupSupervisor)

	for i := 0; i < r.config.MaxSupervisorIterations; i++ {
		out, err := r.callLLM(ctx, activities.LLMActivityInput{
			Purpose:      activities.PurposeSupervisor,
			Conversation: conv.GetForPrompt(),
			Tools:        decls,
			SystemPrompt: systemPrompt,
			ModelConfig:  r.config.Models.Supervisor,
		})
		if err != nil {
			logger.Warn("Supervisor call failed, researching the full brief", "error", err)
			return []string{brief}
		}
		if err := conv.AddTurn(out.Turn); err != nil {
			logger.Warn("Malformed supervisor turn, researching the full brief", "error", err)
			return []string{brief}
		}
		if !isThinkOnly(out.Turn) {
			logger.Info("Supervisor decided",
				"iteration", i+1,
				"calls", len(out.Turn.ToolCalls),
				"estimated_tokens", conv.EstimateTokenCount())
			return subTasksFrom(ctx, out.Turn, brief, r.config.MaxConcurrentResearchUnits)
		}
		for _, call := range conv.PendingToolCalls() {
			result := models.ToolResult{ToolCallID: call.ID, Name: call.Name, Content: reflectionResult(call)}
			if err := conv.AddTurn(models.ToolResultTurn(result)); err != nil {
				logger.Warn("Could not record reflection", "error", err)
				return []string{brief}
			}
		}
	}

	logger.Warn("Supervisor kept reflecting, researching the full brief",
		"iterations", r.config.MaxSupervisorIterations)
	return []string{brief}
}

// isThinkOnly reports whether every call of a turn is think_tool.
func isThinkOnly(turn models.ConversationTurn) bool {
	if !turn.HasToolCalls() {
		return false
	}
	for _, call := range turn.ToolCalls {
		if call.Name != tools.ThinkTool {
			return false
		}
	}
	return true
}

// subTasksFrom extracts one sub-task per conduct_research call of the
// decision turn. Identical topics are kept; an empty topic means the full
// brief. No calls yields the full brief, and more than limit calls are
// truncated to limit.
func subTasksFrom(ctx workflow.Context, turn models.ConversationTurn, brief string, limit int) []string {
	var subTasks []string
	for _, call := range turn.ToolCalls {
		if call.Name != tools.ConductResearch {
			continue
		}
		subTasks = append(subTasks, firstNonEmpty(call.StringArgument("research_topic"), brief))
	}
	if len(subTasks) == 0 {
		return []string{brief}
	}
	if limit > 0 && len(subTasks) > limit {
		workflow.GetLogger(ctx).Warn("Too many research threads requested, truncating",
			"requested", len(subTasks), "limit", limit)
		subTasks = subTasks[:limit]
	}
	return subTasks
}

// threadOutcome is the slot of one dispatched thread.
type threadOutcome struct {
	notes   []string
	failure *models.ThreadFailure
}

// dispatch starts one child workflow per sub-task and waits until every
// one of them is terminal. Results are indexed by dispatch order whatever
// the completion order.
func (r *researchRun) dispatch(ctx workflow.Context, subTasks []string) []threadOutcome {
	logger := workflow.GetLogger(ctx)
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID

	results := make([]threadOutcome, len(subTasks))
	selector := workflow.NewSelector(ctx)

	r.status.Threads = make([]ThreadStatus, len(subTasks))
	for i, subTask := range subTasks {
		workflowID := fmt.Sprintf("%s/thread-%d", parentID, i+1)
		r.status.Threads[i] = ThreadStatus{Index: i, SubTask: subTask, WorkflowID: workflowID, State: ThreadRunning}

		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID:               workflowID,
			WorkflowExecutionTimeout: r.config.ThreadTimeout,
			RetryPolicy:              &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		future := workflow.ExecuteChildWorkflow(childCtx, ResearchThreadWorkflow, ResearchThreadInput{
			Index:   i,
			SubTask: subTask,
			Config:  r.config,
		})

		selector.AddFuture(future, func(f workflow.Future) {
			var res ResearchThreadResult
			err := f.Get(ctx, &res)
			r.usage = r.usage.Add(res.TokenUsage)
			r.status.ToolCalls += res.ToolCalls

			reason := ""
			switch {
			case err != nil:
				reason = err.Error()
			case res.Failed:
				reason = res.Error
			}
			if reason != "" {
				results[i].failure = &models.ThreadFailure{Index: i, Subtask: subTask, Reason: reason}
				r.status.Threads[i].State = ThreadFailed
				r.status.Threads[i].Error = reason
				logger.Warn("Research thread failed", "index", i, "error", reason)
				return
			}
			results[i].notes = res.Notes
			r.status.Threads[i].State = ThreadCompleted
			r.status.NotesCount += len(res.Notes)
		})
	}

	for range subTasks {
		selector.Select(ctx)
	}
	return results
}
