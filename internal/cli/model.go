package cli

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// PollInterval is how often the progress view queries the run status.
const PollInterval = 500 * time.Millisecond

// maxPollErrors is the number of consecutive failed status queries shown
// before the view reports them.
const maxPollErrors = 3

// ResultSource waits for a run's terminal state.
type ResultSource interface {
	Result(ctx context.Context, workflowID string) (workflow.ResearchResult, error)
}

// ProgressModel is the bubbletea model that follows one research run
// until it completes or the user detaches.
type ProgressModel struct {
	ctx        context.Context
	results    ResultSource
	poller     *Poller
	workflowID string

	keys     KeyMap
	styles   Styles
	renderer *Renderer
	spinner  spinner.Model

	status            workflow.ResearchStatus
	consecutiveErrors int
	pollCh            chan PollResult
	pollCancel        context.CancelFunc

	result   *workflow.ResearchResult
	err      error
	detached bool
}

// NewProgressModel creates the progress view of one run.
func NewProgressModel(ctx context.Context, results ResultSource, status StatusSource, workflowID string, renderer *Renderer, styles Styles) *ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Phase

	return &ProgressModel{
		ctx:        ctx,
		results:    results,
		poller:     NewPoller(status, workflowID, PollInterval),
		workflowID: workflowID,
		keys:       DefaultKeyMap(),
		styles:     styles,
		renderer:   renderer,
		spinner:    sp,
		status:     workflow.ResearchStatus{Phase: workflow.PhaseScoping},
		pollCh:     make(chan PollResult, 1),
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startPolling(), m.waitForResult())
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Detach) || key.Matches(msg, m.keys.Quit) {
			m.detached = true
			m.stopPolling()
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PollResultMsg:
		if msg.Result.Err != nil {
			m.consecutiveErrors++
		} else {
			m.consecutiveErrors = 0
			m.status = msg.Result.Status
		}
		return m, m.waitForPollResult()

	case RunCompletedMsg:
		m.stopPolling()
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			res := msg.Result
			m.result = &res
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *ProgressModel) View() string {
	if m.result != nil || m.err != nil || m.detached {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.renderer.Header(m.workflowID))
	b.WriteString(m.spinner.View() + " " + m.styles.Phase.Render(PhaseMessage(m.status)) + "\n")
	b.WriteString(m.renderer.Threads(m.status))
	if m.consecutiveErrors >= maxPollErrors {
		b.WriteString(m.styles.Error.Render("status unavailable, retrying...") + "\n")
	}
	b.WriteString(m.styles.Dim.Render("d detach • q stop watching") + "\n")
	return b.String()
}

// Result returns the terminal state, if the run completed while watched.
func (m *ProgressModel) Result() (*workflow.ResearchResult, error) {
	return m.result, m.err
}

// Detached reports whether the user stopped watching before completion.
func (m *ProgressModel) Detached() bool {
	return m.detached
}

// Status returns the last polled status.
func (m *ProgressModel) Status() workflow.ResearchStatus {
	return m.status
}

func (m *ProgressModel) startPolling() tea.Cmd {
	m.stopPolling()

	var pollCtx context.Context
	pollCtx, m.pollCancel = context.WithCancel(m.ctx)
	go m.poller.RunPolling(pollCtx, m.pollCh)

	return m.waitForPollResult()
}

func (m *ProgressModel) waitForPollResult() tea.Cmd {
	ch := m.pollCh
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case result := <-ch:
			return PollResultMsg{Result: result}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *ProgressModel) stopPolling() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

func (m *ProgressModel) waitForResult() tea.Cmd {
	ctx, results, id := m.ctx, m.results, m.workflowID
	return func() tea.Msg {
		res, err := results.Result(ctx, id)
		return RunCompletedMsg{Result: res, Err: err}
	}
}
