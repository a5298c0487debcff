// Package research is the entry point of a research run: it starts
// DeepResearchWorkflow on a Temporal client and waits for its outcome.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// WorkflowIDPrefix prefixes the IDs of research runs.
const WorkflowIDPrefix = "research-"

// RunRequest describes one research run.
type RunRequest struct {
	// Message is the user's request, or the answer to an earlier
	// clarifying question.
	Message string
	// History holds the turns of earlier clarification rounds.
	History  []models.ConversationTurn
	Config   models.ResearchConfig
	Guidance instructions.MergeInput
	// WorkflowID is generated when empty.
	WorkflowID string
}

// Runner starts research runs and reads their state.
type Runner struct {
	client    client.Client
	taskQueue string
}

// NewRunner creates a runner submitting to taskQueue.
func NewRunner(c client.Client, taskQueue string) *Runner {
	return &Runner{client: c, taskQueue: taskQueue}
}

// NewWorkflowID returns a fresh research run ID.
func NewWorkflowID() string {
	return WorkflowIDPrefix + uuid.New().String()[:8]
}

// Start submits a run without waiting for it.
func (r *Runner) Start(ctx context.Context, req RunRequest) (client.WorkflowRun, error) {
	if strings.TrimSpace(req.Message) == "" && len(req.History) == 0 {
		return nil, fmt.Errorf("research request is empty")
	}
	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = NewWorkflowID()
	}

	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                r.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
	}, workflow.DeepResearchWorkflow, workflow.ResearchInput{
		History:     req.History,
		UserMessage: req.Message,
		Config:      req.Config,
		Guidance:    req.Guidance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}
	return run, nil
}

// Run submits a run and blocks until it reaches a terminal state.
func (r *Runner) Run(ctx context.Context, req RunRequest) (workflow.ResearchResult, error) {
	run, err := r.Start(ctx, req)
	if err != nil {
		return workflow.ResearchResult{}, err
	}
	return wait(ctx, run)
}

// Result waits for an existing run.
func (r *Runner) Result(ctx context.Context, workflowID string) (workflow.ResearchResult, error) {
	return wait(ctx, r.client.GetWorkflow(ctx, workflowID, ""))
}

// queryTimeout is the per-query timeout for status queries.
const queryTimeout = 5 * time.Second

// Status queries the progress of a run.
func (r *Runner) Status(ctx context.Context, workflowID string) (workflow.ResearchStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var status workflow.ResearchStatus
	resp, err := r.client.QueryWorkflow(queryCtx, workflowID, "", workflow.QueryGetResearchStatus)
	if err != nil {
		return status, err
	}
	if err := resp.Get(&status); err != nil {
		return status, fmt.Errorf("decode research status: %w", err)
	}
	return status, nil
}

func wait(ctx context.Context, run client.WorkflowRun) (workflow.ResearchResult, error) {
	var result workflow.ResearchResult
	if err := run.Get(ctx, &result); err != nil {
		return workflow.ResearchResult{}, fmt.Errorf("research run %s: %w", run.GetID(), err)
	}
	return result, nil
}

// IsAllThreadsFailed reports whether a run failed because every research
// thread failed.
func IsAllThreadsFailed(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == models.AppErrorAllThreadsFailed
}
