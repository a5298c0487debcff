package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.temporal.io/sdk/client"

	"github.com/mfateev/temporal-deep-research/internal/research"
	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// ResearchService starts runs and follows them. research.Runner
// implements it.
type ResearchService interface {
	Start(ctx context.Context, req research.RunRequest) (client.WorkflowRun, error)
	ResultSource
	StatusSource
}

// Options configures one `run` invocation.
type Options struct {
	Request research.RunRequest

	NoColor    bool
	NoMarkdown bool
	// Interactive enables answering clarifying questions on In.
	Interactive bool
	// ShowProgress follows the run in the progress view instead of
	// printing phase changes.
	ShowProgress bool
	// Detach starts the run and returns without waiting.
	Detach bool

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// App runs research requests from the terminal.
type App struct {
	service  ResearchService
	opts     Options
	styles   Styles
	renderer *Renderer
	input    *bufio.Reader
}

// NewApp creates the terminal front end.
func NewApp(service ResearchService, opts Options) *App {
	styles := StylesFor(opts.NoColor)
	a := &App{
		service:  service,
		opts:     opts,
		styles:   styles,
		renderer: NewRenderer(0, opts.NoColor, opts.NoMarkdown, styles),
	}
	if opts.In != nil {
		a.input = bufio.NewReader(opts.In)
	}
	return a
}

// Run starts the request and follows it. When the run ends with a
// clarifying question and the app is interactive, the user's answer
// starts a follow-up run carrying the conversation so far.
func (a *App) Run(ctx context.Context) error {
	req := a.opts.Request
	for {
		run, err := a.service.Start(ctx, req)
		if err != nil {
			return err
		}
		workflowID := run.GetID()

		if a.opts.Detach {
			fmt.Fprintf(a.opts.Out, "Started research run %s\n", workflowID)
			fmt.Fprintf(a.opts.Err, "Follow it with:\n  deep-research status %s\n", workflowID)
			return nil
		}

		result, err := a.follow(ctx, workflowID)
		if errors.Is(err, errDetached) {
			fmt.Fprintf(a.opts.Err, "\nStopped watching. The run continues; check it with:\n  deep-research status %s\n", workflowID)
			return nil
		}
		if err != nil {
			if research.IsAllThreadsFailed(err) {
				fmt.Fprint(a.opts.Err, a.renderer.Error(fmt.Errorf("every research thread failed, no report was written")))
			}
			return err
		}

		if result.Outcome != workflow.OutcomeClarification {
			a.PrintReport(result)
			return nil
		}

		fmt.Fprint(a.opts.Out, a.renderer.Question(result.ClarifyingQuestion))
		answer, ok := a.readAnswer()
		if !ok {
			return nil
		}
		req = research.RunRequest{
			Message:  answer,
			History:  result.Messages,
			Config:   req.Config,
			Guidance: req.Guidance,
		}
	}
}

// PrintReport writes a report outcome.
func (a *App) PrintReport(result workflow.ResearchResult) {
	fmt.Fprint(a.opts.Out, a.renderer.Report(result.FinalReport))
	fmt.Fprint(a.opts.Err, a.renderer.ToolResults(result.ToolResults))
	fmt.Fprint(a.opts.Err, a.renderer.Summary(workflow.ResearchStatus{
		NotesCount: len(result.Notes),
		ToolCalls:  len(result.ToolResults),
		TokenUsage: result.TokenUsage,
	}))
}

var errDetached = errors.New("detached")

func (a *App) follow(ctx context.Context, workflowID string) (workflow.ResearchResult, error) {
	if !a.opts.ShowProgress {
		fmt.Fprint(a.opts.Err, a.renderer.Header(workflowID))
		return a.followPlain(ctx, workflowID)
	}

	model := NewProgressModel(ctx, a.service, a.service, workflowID, a.renderer, a.styles)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(a.opts.Err))
	if _, err := p.Run(); err != nil {
		return workflow.ResearchResult{}, fmt.Errorf("TUI error: %w", err)
	}
	if model.Detached() {
		return workflow.ResearchResult{}, errDetached
	}
	result, err := model.Result()
	if err != nil {
		return workflow.ResearchResult{}, err
	}
	if result == nil {
		return workflow.ResearchResult{}, errDetached
	}
	return *result, nil
}

// followPlain prints one line per phase change while waiting.
func (a *App) followPlain(ctx context.Context, workflowID string) (workflow.ResearchResult, error) {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollCh := make(chan PollResult, 1)
	go NewPoller(a.service, workflowID, PollInterval).RunPolling(pollCtx, pollCh)

	done := make(chan RunCompletedMsg, 1)
	go func() {
		res, err := a.service.Result(ctx, workflowID)
		done <- RunCompletedMsg{Result: res, Err: err}
	}()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return workflow.ResearchResult{}, ctx.Err()
		case poll := <-pollCh:
			if poll.Err != nil {
				continue
			}
			if msg := PhaseMessage(poll.Status); msg != last {
				last = msg
				fmt.Fprintln(a.opts.Err, a.styles.Phase.Render(msg))
			}
		case msg := <-done:
			return msg.Result, msg.Err
		}
	}
}

func (a *App) readAnswer() (string, bool) {
	if !a.opts.Interactive || a.input == nil {
		return "", false
	}
	fmt.Fprint(a.opts.Err, "> ")
	line, err := a.input.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" || (err != nil && !errors.Is(err, io.EOF)) {
		return "", false
	}
	return line, true
}

// StatusView renders a status snapshot for `status`.
func (a *App) StatusView(workflowID string, status workflow.ResearchStatus) string {
	var b strings.Builder
	b.WriteString(a.renderer.Header(workflowID))
	b.WriteString(PhaseMessage(status) + "\n")
	if status.ResearchBrief != "" {
		b.WriteString(a.styles.Dim.Render("Brief: "+truncate(oneLine(status.ResearchBrief), 200)) + "\n")
	}
	if status.ClarifyingQuestion != "" {
		b.WriteString(a.renderer.Question(status.ClarifyingQuestion))
	}
	b.WriteString(a.renderer.Threads(status))
	if status.Error != "" {
		b.WriteString(a.renderer.Error(errors.New(status.Error)))
	}
	b.WriteString(a.renderer.Summary(status))
	return b.String()
}
