package instructions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- MergeGuidance tests ---

func TestMergeGuidance_ProjectThenPersonal(t *testing.T) {
	result := MergeGuidance(MergeInput{
		ProjectGuidance:  "cite primary sources\n",
		PersonalGuidance: "write in British English",
	})
	assert.Equal(t, "cite primary sources\n\nwrite in British English", result)
}

func TestMergeGuidance_WorkerBeforeClient(t *testing.T) {
	result := MergeGuidance(MergeInput{
		WorkerGuidance:   "worker docs",
		ProjectGuidance:  "client docs",
		PersonalGuidance: "personal",
	})
	assert.Equal(t, "worker docs\n\npersonal", result)
}

func TestMergeGuidance_OverrideWins(t *testing.T) {
	result := MergeGuidance(MergeInput{
		ProjectGuidance:  "project",
		PersonalGuidance: "personal",
		Override:         "only this",
	})
	assert.Equal(t, "only this", result)
}

func TestMergeGuidance_Empty(t *testing.T) {
	assert.Empty(t, MergeGuidance(MergeInput{PersonalGuidance: "  \n"}))
}

func TestReadPersonalGuidance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidance.md")

	content, err := ReadPersonalGuidance(path)
	require.NoError(t, err)
	assert.Empty(t, content, "missing file is not an error")

	require.NoError(t, os.WriteFile(path, []byte("prefer tables"), 0o644))
	content, err = ReadPersonalGuidance(path)
	require.NoError(t, err)
	assert.Equal(t, "prefer tables", content)
}

// --- Prompt tests ---

func TestFormatDate(t *testing.T) {
	date := time.Date(2025, time.March, 7, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "Fri Mar 7, 2025", FormatDate(date))
}

func TestClarifyPrompt(t *testing.T) {
	prompt := ClarifyPrompt("Human: deep research", "Fri Mar 7, 2025")
	assert.Contains(t, prompt, "<Messages>\nHuman: deep research\n</Messages>")
	assert.Contains(t, prompt, "Fri Mar 7, 2025")
	assert.Contains(t, prompt, "clarify_with_user")
}

func TestBriefPrompt(t *testing.T) {
	prompt := BriefPrompt("Human: compare databases", "Fri Mar 7, 2025")
	assert.Contains(t, prompt, "Human: compare databases")
	assert.Contains(t, prompt, "research_question")
}

func TestSupervisorPrompt_Limits(t *testing.T) {
	prompt := SupervisorPrompt("Fri Mar 7, 2025", 3, 6)
	assert.Contains(t, prompt, "at most 3 parallel conduct_research calls")
	assert.Contains(t, prompt, "at most 6 turns")
}

func TestResearcherAndCompressPrompts(t *testing.T) {
	assert.Contains(t, ResearcherPrompt("Fri Mar 7, 2025", 4), "at most 4 turns")
	assert.Contains(t, CompressPrompt("Fri Mar 7, 2025"), "Fri Mar 7, 2025")
}

func TestReportPrompt(t *testing.T) {
	prompt := ReportPrompt("the brief", "note one\nnote two", "Fri Mar 7, 2025", "")
	assert.Contains(t, prompt, "<Research Brief>\nthe brief\n</Research Brief>")
	assert.Contains(t, prompt, "<Findings>\nnote one\nnote two\n</Findings>")
	assert.Contains(t, prompt, "Today's date is Fri Mar 7, 2025.")
	assert.NotContains(t, prompt, "<User Guidance>")

	prompt = ReportPrompt("the brief", "", "Fri Mar 7, 2025", "use metric units")
	assert.Contains(t, prompt, "<User Guidance>\nuse metric units\n</User Guidance>")
}
