package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

func strPtr(s string) *string { return &s }

func TestApply_ScopeWritesBriefAndMessages(t *testing.T) {
	var s SharedState
	require.NoError(t, s.Apply(StageUpdate{
		Stage:         stageScope,
		Messages:      []models.ConversationTurn{models.AssistantTurn("ok")},
		ResearchBrief: "brief",
	}))
	assert.Equal(t, "brief", s.ResearchBrief)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, stageSupervisor, route(s))
}

func TestApply_WriteSets(t *testing.T) {
	tests := []struct {
		name   string
		update StageUpdate
	}{
		{"scope writes notes", StageUpdate{Stage: stageScope, Notes: []string{"n"}}},
		{"scope writes report", StageUpdate{Stage: stageScope, FinalReport: strPtr("r")}},
		{"supervisor writes messages", StageUpdate{Stage: stageSupervisor, Messages: []models.ConversationTurn{models.UserTurn("x")}}},
		{"supervisor writes brief", StageUpdate{Stage: stageSupervisor, ResearchBrief: "b"}},
		{"report writes notes", StageUpdate{Stage: stageReport, Notes: []string{"n"}}},
		{"report writes question", StageUpdate{Stage: stageReport, ClarifyingQuestion: "q"}},
		{"unknown stage", StageUpdate{Stage: "review"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s SharedState
			assert.Error(t, s.Apply(tt.update))
		})
	}
}

func TestApply_BriefIsSetOnce(t *testing.T) {
	s := SharedState{ResearchBrief: "first"}
	assert.Error(t, s.Apply(StageUpdate{Stage: stageScope, ResearchBrief: "second"}))
	assert.Equal(t, "first", s.ResearchBrief)
}

func TestApply_ReportIsSetOnce(t *testing.T) {
	var s SharedState
	require.NoError(t, s.Apply(StageUpdate{Stage: stageReport, FinalReport: strPtr("")}))
	assert.True(t, s.HasReport)
	assert.Error(t, s.Apply(StageUpdate{Stage: stageReport, FinalReport: strPtr("again")}))
}

func TestApply_NotesAppend(t *testing.T) {
	var s SharedState
	require.NoError(t, s.Apply(StageUpdate{Stage: stageSupervisor, Notes: []string{"a", "b"}}))
	require.NoError(t, s.Apply(StageUpdate{Stage: stageSupervisor, Notes: []string{"c"}}))
	assert.Equal(t, []string{"a", "b", "c"}, s.Notes)
}

func TestRoute_OnlyBriefPresenceMatters(t *testing.T) {
	assert.Equal(t, stageEnd, route(SharedState{}))
	assert.Equal(t, stageEnd, route(SharedState{ClarifyingQuestion: "q", Notes: []string{"n"}}))
	assert.Equal(t, stageSupervisor, route(SharedState{ResearchBrief: "b"}))
}
