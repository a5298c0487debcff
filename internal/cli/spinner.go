package cli

import (
	"fmt"

	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// PhaseMessage returns a human-friendly message for a run's status.
func PhaseMessage(status workflow.ResearchStatus) string {
	switch status.Phase {
	case workflow.PhaseScoping, "":
		return "Scoping the request..."
	case workflow.PhaseSupervising:
		if len(status.Threads) == 0 {
			return "Planning the research..."
		}
		done := 0
		for _, t := range status.Threads {
			if t.State != workflow.ThreadRunning {
				done++
			}
		}
		return fmt.Sprintf("Researching (%d/%d threads done)...", done, len(status.Threads))
	case workflow.PhaseReporting:
		return "Writing the report..."
	case workflow.PhaseDone:
		return "Done"
	case workflow.PhaseFailed:
		return "Failed"
	default:
		return "Working..."
	}
}
