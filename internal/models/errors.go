package models

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorType categorizes errors for appropriate handling
type ErrorType int

const (
	ErrorTypeTransient       ErrorType = iota // Network, timeout → Temporal retries
	ErrorTypeContextOverflow                  // Context window exceeded → fail the stage
	ErrorTypeAPILimit                         // Rate limit → Temporal retries with backoff
	ErrorTypeToolFailure                      // Individual tool failed → reported to the model
	ErrorTypeFatal                            // Unrecoverable → stop workflow
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypeContextOverflow:
		return "ContextOverflow"
	case ErrorTypeAPILimit:
		return "APILimit"
	case ErrorTypeToolFailure:
		return "ToolFailure"
	case ErrorTypeFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Application error types surfaced through Temporal. Workflow code and the
// client match on these strings, so they are part of the wire contract.
const (
	AppErrorAllThreadsFailed    = "AllThreadsFailed"
	AppErrorToolResolution      = "ToolResolution"
	AppErrorIterationsExhausted = "IterationsExhausted"
)

// ErrAllThreadsFailed is returned when every research thread of a supervisor
// step failed, leaving nothing to write a report from.
var ErrAllThreadsFailed = errors.New("all research threads failed")

// ActivityError represents an error from a Temporal activity with categorization
type ActivityError struct {
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewTransientError creates a retryable transient error
func NewTransientError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeTransient,
		Retryable: true,
		Message:   message,
	}
}

// NewContextOverflowError creates a context overflow error
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeContextOverflow,
		Retryable: false,
		Message:   message,
	}
}

// NewAPILimitError creates an API rate limit error
func NewAPILimitError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeAPILimit,
		Retryable: true,
		Message:   message,
	}
}

// NewToolFailureError creates a tool failure error
func NewToolFailureError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeToolFailure,
		Retryable: false,
		Message:   message,
	}
}

// NewFatalError creates a fatal error
func NewFatalError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeFatal,
		Retryable: false,
		Message:   message,
	}
}

// WrapActivityError converts an error returned by a provider or gateway into
// one Temporal understands. ActivityErrors become application errors whose
// type is the ErrorType name, non-retryable unless Retryable is set. Other
// errors pass through unchanged and are retried per the activity policy.
func WrapActivityError(err error) error {
	if err == nil {
		return nil
	}
	var ae *ActivityError
	if !errors.As(err, &ae) {
		return err
	}
	return temporal.NewApplicationErrorWithOptions(ae.Message, ae.Type.String(), temporal.ApplicationErrorOptions{
		NonRetryable: !ae.Retryable,
		Cause:        err,
	})
}

// ToolResolutionError is returned when a tool name matches no tool exposed by
// any configured MCP server.
type ToolResolutionError struct {
	Name string
}

func (e *ToolResolutionError) Error() string {
	return fmt.Sprintf("tool %q is not provided by any configured MCP server", e.Name)
}

// ToolExecutionError is returned when a tool ran but reported failure.
// The message is the tool's own output.
type ToolExecutionError struct {
	Name    string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Name, e.Message)
}

// ThreadFailure records a research thread that did not produce a note.
type ThreadFailure struct {
	Index   int    `json:"index"`
	Subtask string `json:"subtask"`
	Reason  string `json:"reason"`
}

// Note renders the failure as the note merged into shared state in place of
// the thread's findings.
func (f ThreadFailure) Note() string {
	return fmt.Sprintf("[research thread %d failed] %s: %s", f.Index+1, f.Subtask, f.Reason)
}
