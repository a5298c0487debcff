package workflow

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// researchRun is the orchestrator's state for one DeepResearchWorkflow
// execution. It is created per run and discarded when the run ends.
type researchRun struct {
	config      models.ResearchConfig
	state       SharedState
	status      ResearchStatus
	usage       models.TokenUsage
	guidance    string
	toolResults []models.ToolResult
}

// DeepResearchWorkflow runs the research state machine:
//
//	Scoping -> Supervising -> Reporting -> Done
//	Scoping -> Done (clarification)
//
// It returns a ResearchResult carrying either a clarifying question or the
// final report. A run in which every research thread failed ends with an
// AllThreadsFailed application error.
func DeepResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)

	if strings.TrimSpace(input.UserMessage) == "" && len(input.History) == 0 {
		return ResearchResult{}, temporal.NewNonRetryableApplicationError("empty research request", "InvalidInput", nil)
	}

	r := &researchRun{
		config: input.Config.WithDefaults(),
		status: ResearchStatus{Phase: PhaseScoping},
	}
	r.state.Messages = append(r.state.Messages, input.History...)
	if strings.TrimSpace(input.UserMessage) != "" {
		r.state.Messages = append(r.state.Messages, models.UserTurn(input.UserMessage))
	}

	if err := workflow.SetQueryHandler(ctx, QueryGetResearchStatus, func() (ResearchStatus, error) {
		return r.snapshot(), nil
	}); err != nil {
		logger.Error("Failed to register get_research_status query handler", "error", err)
	}

	if err := r.apply(r.scope(ctx)); err != nil {
		return r.fail(err)
	}
	r.status.ResearchBrief = r.state.ResearchBrief

	if route(r.state) == stageEnd {
		logger.Info("Run ends with a clarifying question")
		r.status.Phase = PhaseDone
		r.status.ClarifyingQuestion = r.state.ClarifyingQuestion
		return ResearchResult{
			Outcome:            OutcomeClarification,
			ClarifyingQuestion: r.state.ClarifyingQuestion,
			Messages:           r.state.Messages,
			TokenUsage:         r.usage,
		}, nil
	}

	input.Guidance.WorkerGuidance = loadWorkerGuidance(ctx)
	r.guidance = instructions.MergeGuidance(input.Guidance)

	r.status.Phase = PhaseSupervising
	update, err := r.supervise(ctx)
	if err != nil {
		return r.fail(err)
	}
	if err := r.apply(update); err != nil {
		return r.fail(err)
	}
	r.status.NotesCount = len(r.state.Notes)

	r.status.Phase = PhaseReporting
	update, err = r.report(ctx)
	if err != nil {
		return r.fail(err)
	}
	if err := r.apply(update); err != nil {
		return r.fail(err)
	}

	r.status.Phase = PhaseDone
	logger.Info("Research run completed",
		"notes", len(r.state.Notes),
		"tool_calls", len(r.toolResults),
		"total_tokens", r.usage.TotalTokens)

	return ResearchResult{
		Outcome:       OutcomeReport,
		FinalReport:   r.state.FinalReport,
		ResearchBrief: r.state.ResearchBrief,
		Notes:         r.state.Notes,
		ToolResults:   r.toolResults,
		Messages:      r.state.Messages,
		TokenUsage:    r.usage,
	}, nil
}

// callLLM runs one model call on behalf of the orchestrator and accounts
// its token usage.
func (r *researchRun) callLLM(ctx workflow.Context, input activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
	out, err := executeLLM(ctx, input)
	if err == nil {
		r.usage = r.usage.Add(out.TokenUsage)
	}
	return out, err
}

func (r *researchRun) apply(update StageUpdate) error {
	if err := r.state.Apply(update); err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid %s stage update: %v", update.Stage, err), "InvalidStageUpdate", err)
	}
	return nil
}

func (r *researchRun) fail(err error) (ResearchResult, error) {
	r.status.Phase = PhaseFailed
	r.status.Error = err.Error()
	return ResearchResult{}, err
}

func (r *researchRun) snapshot() ResearchStatus {
	status := r.status
	status.Threads = append([]ThreadStatus(nil), r.status.Threads...)
	status.TokenUsage = r.usage
	return status
}
