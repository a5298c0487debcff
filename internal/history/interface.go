// Package history provides the append-only conversation buffers the
// research stages build their model requests from.
package history

import "github.com/mfateev/temporal-deep-research/internal/models"

// ContextManager is the interface for managing one conversation.
//
// Turns are never reordered or mutated once appended.
type ContextManager interface {
	// AddTurn validates and appends a turn.
	AddTurn(turn models.ConversationTurn) error

	// GetForPrompt returns a copy of the turns, oldest first.
	GetForPrompt() []models.ConversationTurn

	// EstimateTokenCount estimates the total token count of the conversation.
	EstimateTokenCount() int

	// PendingToolCalls returns the calls of the last assistant turn that
	// have no tool result yet, in call order.
	PendingToolCalls() []models.ToolCall

	// Len returns the number of turns.
	Len() int
}
