package cli

import (
	"context"
	"time"

	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// StatusSource answers the research status query.
type StatusSource interface {
	Status(ctx context.Context, workflowID string) (workflow.ResearchStatus, error)
}

// PollResult holds the results from a single poll cycle.
type PollResult struct {
	Status workflow.ResearchStatus
	Err    error
}

// Poller queries a research run for its status.
type Poller struct {
	source     StatusSource
	workflowID string
	interval   time.Duration
}

// NewPoller creates a poller for the given run.
func NewPoller(source StatusSource, workflowID string, interval time.Duration) *Poller {
	return &Poller{
		source:     source,
		workflowID: workflowID,
		interval:   interval,
	}
}

// Poll performs a single poll cycle.
func (p *Poller) Poll(ctx context.Context) PollResult {
	status, err := p.source.Status(ctx, p.workflowID)
	return PollResult{Status: status, Err: err}
}

// RunPolling polls in a loop, sending results to the channel.
// Stops when context is cancelled.
func (p *Poller) RunPolling(ctx context.Context, ch chan<- PollResult) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := p.Poll(ctx)
			select {
			case ch <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}
