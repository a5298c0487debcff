// Package workflow contains the Temporal workflow definitions of a research
// run: the orchestrator (DeepResearchWorkflow) and its research threads
// (ResearchThreadWorkflow).
//
// state.go holds the run's shared state, separated from workflow logic.
package workflow

import (
	"fmt"

	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// QueryGetResearchStatus returns the current ResearchStatus.
// Used by the CLI to drive its progress view.
const QueryGetResearchStatus = "get_research_status"

// Stage names. stageEnd is the terminal routing target.
const (
	stageScope      = "scope"
	stageSupervisor = "supervisor"
	stageReport     = "report"
	stageEnd        = "end"
)

// ResearchInput is the input of DeepResearchWorkflow.
type ResearchInput struct {
	// History carries the turns of earlier clarification rounds. The caller
	// re-supplies them; the workflow keeps nothing between runs.
	History     []models.ConversationTurn `json:"history,omitempty"`
	UserMessage string                    `json:"user_message"`
	Config      models.ResearchConfig     `json:"config"`
	Guidance    instructions.MergeInput   `json:"guidance"`
}

// Outcome is the kind of terminal result a run produced.
type Outcome string

const (
	OutcomeClarification Outcome = "clarification"
	OutcomeReport        Outcome = "report"
)

// ResearchResult is the terminal state of a run. It carries either a
// clarifying question or a final report, never both.
type ResearchResult struct {
	Outcome            Outcome                   `json:"outcome"`
	ClarifyingQuestion string                    `json:"clarifying_question,omitempty"`
	FinalReport        string                    `json:"final_report,omitempty"`
	ResearchBrief      string                    `json:"research_brief,omitempty"`
	Notes              []string                  `json:"notes,omitempty"`
	ToolResults        []models.ToolResult       `json:"tool_results,omitempty"`
	Messages           []models.ConversationTurn `json:"messages"`
	TokenUsage         models.TokenUsage         `json:"token_usage"`
}

// SharedState is the single record threaded through a run. Stages never
// write it directly: they return a StageUpdate that Apply merges.
type SharedState struct {
	Messages           []models.ConversationTurn `json:"messages"`
	ResearchBrief      string                    `json:"research_brief,omitempty"`
	Notes              []string                  `json:"notes,omitempty"`
	FinalReport        string                    `json:"final_report,omitempty"`
	HasReport          bool                      `json:"has_report"`
	ClarifyingQuestion string                    `json:"clarifying_question,omitempty"`
}

// StageUpdate is the partial update a stage returns.
// Messages and Notes are appended; the other fields are set.
type StageUpdate struct {
	Stage              string
	Messages           []models.ConversationTurn
	ResearchBrief      string
	Notes              []string
	FinalReport        *string
	ClarifyingQuestion string
}

// Apply merges u into the state.
//
// Each stage may only write its own fields: scope writes messages, the
// brief and the clarifying question; the supervisor appends notes; the
// report stage writes messages and the final report. The brief is set
// once and the final report at most once.
func (s *SharedState) Apply(u StageUpdate) error {
	switch u.Stage {
	case stageScope:
		if len(u.Notes) > 0 || u.FinalReport != nil {
			return fmt.Errorf("scope stage cannot write notes or the final report")
		}
	case stageSupervisor:
		if len(u.Messages) > 0 || u.ResearchBrief != "" || u.FinalReport != nil || u.ClarifyingQuestion != "" {
			return fmt.Errorf("supervisor stage can only append notes")
		}
	case stageReport:
		if u.ResearchBrief != "" || len(u.Notes) > 0 || u.ClarifyingQuestion != "" {
			return fmt.Errorf("report stage can only write messages and the final report")
		}
	default:
		return fmt.Errorf("unknown stage %q", u.Stage)
	}

	if u.ResearchBrief != "" && s.ResearchBrief != "" {
		return fmt.Errorf("research brief is already set")
	}
	if u.FinalReport != nil && s.HasReport {
		return fmt.Errorf("final report is already set")
	}

	s.Messages = append(s.Messages, u.Messages...)
	s.Notes = append(s.Notes, u.Notes...)
	if u.ResearchBrief != "" {
		s.ResearchBrief = u.ResearchBrief
	}
	if u.ClarifyingQuestion != "" {
		s.ClarifyingQuestion = u.ClarifyingQuestion
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
		s.HasReport = true
	}
	return nil
}

// route picks the stage after scoping. Brief presence is the only
// predicate.
func route(s SharedState) string {
	if s.ResearchBrief != "" {
		return stageSupervisor
	}
	return stageEnd
}

// Phase is the orchestrator's position in the state machine.
type Phase string

const (
	PhaseScoping     Phase = "scoping"
	PhaseSupervising Phase = "supervising"
	PhaseReporting   Phase = "reporting"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// ThreadState tracks one research thread.
type ThreadState string

const (
	ThreadRunning   ThreadState = "running"
	ThreadCompleted ThreadState = "completed"
	ThreadFailed    ThreadState = "failed"
)

// ThreadStatus is the query view of one research thread.
type ThreadStatus struct {
	Index      int         `json:"index"`
	SubTask    string      `json:"sub_task"`
	WorkflowID string      `json:"workflow_id"`
	State      ThreadState `json:"state"`
	Error      string      `json:"error,omitempty"`
}

// ResearchStatus is returned by the get_research_status query.
type ResearchStatus struct {
	Phase              Phase             `json:"phase"`
	ResearchBrief      string            `json:"research_brief,omitempty"`
	ClarifyingQuestion string            `json:"clarifying_question,omitempty"`
	Threads            []ThreadStatus    `json:"threads,omitempty"`
	NotesCount         int               `json:"notes_count"`
	ToolCalls          int               `json:"tool_calls"`
	TokenUsage         models.TokenUsage `json:"token_usage"`
	Error              string            `json:"error,omitempty"`
}
