package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

func TestAssignMissingCallIDs(t *testing.T) {
	calls := assignMissingCallIDs([]models.ToolCall{
		{Name: "conduct_research"},
		{ID: "call_1", Name: "conduct_research"},
		{Name: "conduct_research"},
		{ID: "dup", Name: "read_file"},
		{ID: "dup", Name: "read_file"},
	})

	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	// call_1 is taken by the model, so the third call gets call_2;
	// repeated IDs from the model are kept as they are.
	assert.Equal(t, []string{"call_0", "call_1", "call_2", "dup", "dup"}, ids)
}

func TestAssignMissingCallIDs_Collision(t *testing.T) {
	calls := assignMissingCallIDs([]models.ToolCall{
		{Name: "a"},
		{ID: "call_0", Name: "b"},
	})
	assert.Equal(t, "call_0_1", calls[0].ID)
	assert.Equal(t, "call_0", calls[1].ID)
}

func TestAssignMissingCallIDs_Empty(t *testing.T) {
	assert.Empty(t, assignMissingCallIDs(nil))
}
