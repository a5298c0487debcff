package history

import (
	"fmt"
	"sync"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

var _ ContextManager = (*InMemoryHistory)(nil)

// InMemoryHistory is a simple in-memory implementation of ContextManager.
type InMemoryHistory struct {
	turns []models.ConversationTurn
	mu    sync.RWMutex
}

// NewInMemoryHistory creates a history seeded with the given turns.
// Seed turns are not validated; they come from a conversation that was
// already accepted.
func NewInMemoryHistory(seed ...models.ConversationTurn) *InMemoryHistory {
	turns := make([]models.ConversationTurn, len(seed))
	copy(turns, seed)
	return &InMemoryHistory{turns: turns}
}

// AddTurn validates and appends a turn.
//
// Assistant turns must not repeat a tool call ID. Tool turns must answer a
// pending call of the last assistant turn, in call order.
func (h *InMemoryHistory) AddTurn(turn models.ConversationTurn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch turn.Role {
	case models.RoleUser:
	case models.RoleAssistant:
		seen := make(map[string]bool, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			if call.ID == "" {
				return fmt.Errorf("tool call %s has no id", call.Name)
			}
			if seen[call.ID] {
				return fmt.Errorf("duplicate tool call id %q in one assistant turn", call.ID)
			}
			seen[call.ID] = true
		}
	case models.RoleTool:
		pending := h.pendingLocked()
		if len(pending) == 0 {
			return fmt.Errorf("tool result %q answers no pending tool call", turn.ToolCallID)
		}
		if pending[0].ID != turn.ToolCallID {
			return fmt.Errorf("tool result %q out of order: expected %q", turn.ToolCallID, pending[0].ID)
		}
	default:
		return fmt.Errorf("unknown role %q", turn.Role)
	}

	h.turns = append(h.turns, turn)
	return nil
}

// GetForPrompt returns a copy of the turns, oldest first.
func (h *InMemoryHistory) GetForPrompt() []models.ConversationTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]models.ConversationTurn, len(h.turns))
	copy(result, h.turns)
	return result
}

// EstimateTokenCount estimates the total token count using a simple heuristic.
// Uses 4 characters per token as a rough estimate.
func (h *InMemoryHistory) EstimateTokenCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	totalChars := 0
	for _, turn := range h.turns {
		totalChars += len(turn.Content)
		for _, call := range turn.ToolCalls {
			totalChars += len(call.Name) + len(call.Arguments)
		}
	}
	return totalChars / 4
}

// PendingToolCalls returns the unanswered calls of the last assistant turn.
func (h *InMemoryHistory) PendingToolCalls() []models.ToolCall {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pendingLocked()
}

func (h *InMemoryHistory) pendingLocked() []models.ToolCall {
	answered := 0
	for i := len(h.turns) - 1; i >= 0; i-- {
		switch h.turns[i].Role {
		case models.RoleTool:
			answered++
		case models.RoleAssistant:
			calls := h.turns[i].ToolCalls
			if answered >= len(calls) {
				return nil
			}
			return append([]models.ToolCall(nil), calls[answered:]...)
		default:
			return nil
		}
	}
	return nil
}

// Len returns the number of turns.
func (h *InMemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
