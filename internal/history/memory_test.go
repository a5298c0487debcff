package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

func assistantWithCalls(ids ...string) models.ConversationTurn {
	turn := models.AssistantTurn("")
	for _, id := range ids {
		turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{ID: id, Name: "think_tool", Arguments: "{}"})
	}
	return turn
}

func toolResult(id string) models.ConversationTurn {
	return models.ToolResultTurn(models.ToolResult{ToolCallID: id, Name: "think_tool", Content: "ok"})
}

func TestAddTurn_AppendsInOrder(t *testing.T) {
	h := NewInMemoryHistory(models.UserTurn("brief"))
	require.NoError(t, h.AddTurn(assistantWithCalls("a", "b")))
	require.NoError(t, h.AddTurn(toolResult("a")))
	require.NoError(t, h.AddTurn(toolResult("b")))

	turns := h.GetForPrompt()
	require.Len(t, turns, 4)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, "a", turns[2].ToolCallID)
	assert.Equal(t, "b", turns[3].ToolCallID)
}

func TestAddTurn_RejectsDuplicateCallIDs(t *testing.T) {
	h := NewInMemoryHistory()
	err := h.AddTurn(assistantWithCalls("a", "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Equal(t, 0, h.Len())
}

func TestAddTurn_RejectsMissingCallID(t *testing.T) {
	h := NewInMemoryHistory()
	assert.Error(t, h.AddTurn(assistantWithCalls("")))
}

func TestAddTurn_RejectsOutOfOrderResult(t *testing.T) {
	h := NewInMemoryHistory()
	require.NoError(t, h.AddTurn(assistantWithCalls("a", "b")))
	assert.Error(t, h.AddTurn(toolResult("b")))
	assert.Error(t, NewInMemoryHistory().AddTurn(toolResult("x")), "no pending call")
}

func TestPendingToolCalls(t *testing.T) {
	h := NewInMemoryHistory()
	assert.Empty(t, h.PendingToolCalls())

	require.NoError(t, h.AddTurn(assistantWithCalls("a", "b", "c")))
	require.NoError(t, h.AddTurn(toolResult("a")))

	pending := h.PendingToolCalls()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)

	require.NoError(t, h.AddTurn(toolResult("b")))
	require.NoError(t, h.AddTurn(toolResult("c")))
	assert.Empty(t, h.PendingToolCalls())
}

func TestGetForPrompt_ReturnsCopy(t *testing.T) {
	h := NewInMemoryHistory(models.UserTurn("original"))
	turns := h.GetForPrompt()
	turns[0].Content = "changed"

	assert.Equal(t, "original", h.GetForPrompt()[0].Content)
}

func TestEstimateTokenCount(t *testing.T) {
	h := NewInMemoryHistory(models.UserTurn("12345678"))
	assert.Equal(t, 2, h.EstimateTokenCount())
}
