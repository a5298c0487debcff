// Package cli implements the terminal front end of deep-research: a
// progress view that follows a running research run and the rendering of
// its outcome.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/mfateev/temporal-deep-research/internal/llm"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

// maxSubTaskWidth truncates sub-tasks in the thread list.
const maxSubTaskWidth = 72

// Renderer renders research outcomes and progress as styled strings.
type Renderer struct {
	width      int
	styles     Styles
	mdRenderer *glamour.TermRenderer
}

// NewRenderer creates a renderer. A width of 0 uses the terminal width.
func NewRenderer(width int, noColor, noMarkdown bool, styles Styles) *Renderer {
	if width <= 0 {
		width = TerminalWidth()
	}
	r := &Renderer{width: width, styles: styles}
	if !noMarkdown {
		style := "dark"
		if noColor {
			style = "notty"
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			r.mdRenderer = md
		}
	}
	return r
}

// TerminalWidth returns the width of stdout, or 80 when it is not a
// terminal.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Report renders the final report, as markdown when enabled.
func (r *Renderer) Report(report string) string {
	if strings.TrimSpace(report) == "" {
		return r.styles.Dim.Render("(the report is empty)") + "\n"
	}
	if r.mdRenderer != nil {
		if rendered, err := r.mdRenderer.Render(report); err == nil {
			return rendered
		}
	}
	return "\n" + report + "\n\n"
}

// Question renders a clarifying question.
func (r *Renderer) Question(question string) string {
	return r.styles.Question.Render("? ") + question + "\n"
}

// Header renders the run header.
func (r *Renderer) Header(workflowID string) string {
	return r.styles.Header.Render("Research run "+workflowID) + "\n"
}

// Threads renders the thread list of a status, one line per thread.
func (r *Renderer) Threads(status workflow.ResearchStatus) string {
	var b strings.Builder
	for _, t := range status.Threads {
		var bullet string
		switch t.State {
		case workflow.ThreadCompleted:
			bullet = r.styles.ThreadCompleted.Render("✓")
		case workflow.ThreadFailed:
			bullet = r.styles.ThreadFailed.Render("✗")
		default:
			bullet = r.styles.ThreadRunning.Render("•")
		}
		fmt.Fprintf(&b, "  %s %d. %s", bullet, t.Index+1, truncate(oneLine(t.SubTask), maxSubTaskWidth))
		if t.Error != "" {
			b.WriteString(" " + r.styles.Dim.Render("("+truncate(oneLine(t.Error), maxSubTaskWidth)+")"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Summary renders the counters of a status.
func (r *Renderer) Summary(status workflow.ResearchStatus) string {
	line := fmt.Sprintf("%d notes, %d tool calls, %d tokens",
		status.NotesCount, status.ToolCalls, status.TokenUsage.TotalTokens)
	return r.styles.Dim.Render(line) + "\n"
}

// ToolResults renders the report stage's tool calls, one line each.
func (r *Renderer) ToolResults(results []models.ToolResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, res := range results {
		if res.IsError {
			fmt.Fprintf(&b, "%s %s %s\n", r.styles.OutputFailure.Render("✗"), res.Name,
				r.styles.Dim.Render(truncate(oneLine(res.Content), r.width/2)))
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", r.styles.OutputSuccess.Render("✓"), res.Name)
	}
	return b.String()
}

// Error renders a run failure.
func (r *Renderer) Error(err error) string {
	return r.styles.Error.Render("Error: ") + err.Error() + "\n"
}

// ToolsTable renders MCP tools as a table.
func ToolsTable(decls []models.ToolDeclaration, styles Styles) string {
	rows := make([][]string, len(decls))
	for i, d := range decls {
		rows[i] = []string{d.Name, truncate(oneLine(d.Description), 80)}
	}
	return newTable(styles, []string{"TOOL", "DESCRIPTION"}, rows)
}

// ModelsTable renders available models as a table.
func ModelsTable(available []llm.AvailableModel, styles Styles) string {
	rows := make([][]string, len(available))
	for i, m := range available {
		rows[i] = []string{m.Provider, m.ModelString(), m.DisplayName}
	}
	return newTable(styles, []string{"PROVIDER", "MODEL", "NAME"}, rows)
}

func newTable(styles Styles, headers []string, rows [][]string) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.TableBorder).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			return cell
		})
	return t.Render() + "\n"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 3 || len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
