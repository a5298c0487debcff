package cli

import "github.com/charmbracelet/lipgloss"

// Styles holds all lipgloss styles of the CLI.
type Styles struct {
	// Run header (workflow ID, brief)
	Header lipgloss.Style
	// Phase line next to the spinner
	Phase lipgloss.Style
	// Thread bullets by state
	ThreadRunning   lipgloss.Style
	ThreadCompleted lipgloss.Style
	ThreadFailed    lipgloss.Style
	// Clarifying question
	Question lipgloss.Style
	// Tool result status
	OutputSuccess lipgloss.Style
	OutputFailure lipgloss.Style
	// Dimmed text (hints, counters)
	Dim lipgloss.Style
	// Error text
	Error lipgloss.Style
	// Table header row
	TableHeader lipgloss.Style
	// Table border
	TableBorder lipgloss.Style
}

// DefaultStyles returns styles with colors enabled.
func DefaultStyles() Styles {
	return Styles{
		Header:          lipgloss.NewStyle().Bold(true),
		Phase:           lipgloss.NewStyle().Faint(true),
		ThreadRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")), // yellow
		ThreadCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
		ThreadFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
		Question:        lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		OutputSuccess:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		OutputFailure:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Dim:             lipgloss.NewStyle().Faint(true),
		Error:           lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		TableHeader:     lipgloss.NewStyle().Bold(true).Padding(0, 1),
		TableBorder:     lipgloss.NewStyle().Faint(true),
	}
}

// NoColorStyles returns styles with no colors (plain text).
func NoColorStyles() Styles {
	return Styles{
		Header:          lipgloss.NewStyle(),
		Phase:           lipgloss.NewStyle(),
		ThreadRunning:   lipgloss.NewStyle(),
		ThreadCompleted: lipgloss.NewStyle(),
		ThreadFailed:    lipgloss.NewStyle(),
		Question:        lipgloss.NewStyle(),
		OutputSuccess:   lipgloss.NewStyle(),
		OutputFailure:   lipgloss.NewStyle(),
		Dim:             lipgloss.NewStyle(),
		Error:           lipgloss.NewStyle(),
		TableHeader:     lipgloss.NewStyle().Padding(0, 1),
		TableBorder:     lipgloss.NewStyle(),
	}
}

// StylesFor picks the style set.
func StylesFor(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
