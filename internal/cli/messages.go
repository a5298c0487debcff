package cli

import "github.com/mfateev/temporal-deep-research/internal/workflow"

// PollResultMsg wraps a PollResult from the polling goroutine.
type PollResultMsg struct {
	Result PollResult
}

// RunCompletedMsg is sent when the research run reaches a terminal state.
type RunCompletedMsg struct {
	Result workflow.ResearchResult
	Err    error
}
