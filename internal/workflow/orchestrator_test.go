package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/tools"
)

// TestComparisonDispatchesTwoThreads: a comparison request is split into two
// threads whose notes are merged in dispatch order.
func (s *ResearchWorkflowTestSuite) TestComparisonDispatchesTwoThreads() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("OpenAI deep research", "Gemini deep research"))

	result := s.run("Compare OpenAI vs Gemini deep research")

	s.Equal(OutcomeReport, result.Outcome)
	s.Equal("Final report", result.FinalReport)
	s.Equal([]string{"note: OpenAI deep research", "note: Gemini deep research"}, result.Notes)
	s.Equal(1, s.llm.count(activities.PurposeSupervisor))
	s.Equal(2, s.llm.count(activities.PurposeCompress))
	s.Equal(1, s.llm.count(activities.PurposeReport))
}

// TestDelegationWithoutCallIDsKeepsEveryThread: a decision turn whose
// conduct_research calls carry no IDs still dispatches one thread per call.
func (s *ResearchWorkflowTestSuite) TestDelegationWithoutCallIDsKeepsEveryThread() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("",
			toolCall("", tools.ConductResearch, map[string]any{"research_topic": "OpenAI deep research"}),
			toolCall("", tools.ConductResearch, map[string]any{"research_topic": "Gemini deep research"}),
		), nil
	})

	result := s.run("Compare OpenAI vs Gemini deep research")

	s.Equal([]string{"note: OpenAI deep research", "note: Gemini deep research"}, result.Notes)
	s.Equal(2, s.llm.count(activities.PurposeCompress))
}

// TestSingleTopicDispatchesOneThread covers the single-thread path and the
// messages recorded along the way.
func (s *ResearchWorkflowTestSuite) TestSingleTopicDispatchesOneThread() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("Chinese restaurants in Chelsea, Manhattan"))

	result := s.run("top three Chinese restaurants in Chelsea, Manhattan")

	s.Equal(OutcomeReport, result.Outcome)
	s.Equal([]string{"note: Chinese restaurants in Chelsea, Manhattan"}, result.Notes)
	s.Equal("Brief: research the request in depth", result.ResearchBrief)
	s.Empty(result.ClarifyingQuestion)

	s.Require().Len(result.Messages, 4)
	s.Equal(models.UserTurn("top three Chinese restaurants in Chelsea, Manhattan"), result.Messages[0])
	s.Equal("Starting research now.", result.Messages[1].Content)
	s.Equal("Brief: research the request in depth", result.Messages[2].Content)
	s.Equal("Final report", result.Messages[3].Content)

	// The supervisor sees the brief, never the raw conversation.
	sup := s.llm.calls(activities.PurposeSupervisor)
	s.Require().Len(sup, 1)
	s.Equal([]models.ConversationTurn{models.UserTurn("Brief: research the request in depth")}, sup[0].Conversation)
}

// TestAmbiguousInputAsksForClarification: no brief means no supervisor,
// no report and no tool traffic.
func (s *ResearchWorkflowTestSuite) TestAmbiguousInputAsksForClarification() {
	s.okTools()
	s.llm.on(activities.PurposeClarify, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("", toolCall("c1", tools.ClarifyWithUser, map[string]any{
			"need_clarification": true,
			"question":           "What would you like to know about jaguars: the animal or the car?",
			"verification":       "",
		})), nil
	})

	result := s.run("jaguars")

	s.Equal(OutcomeClarification, result.Outcome)
	s.Equal("What would you like to know about jaguars: the animal or the car?", result.ClarifyingQuestion)
	s.Empty(result.FinalReport)
	s.Empty(result.ResearchBrief)
	s.Equal(0, s.llm.count(activities.PurposeBrief))
	s.Equal(0, s.llm.count(activities.PurposeSupervisor))
	s.Equal(0, s.llm.count(activities.PurposeReport))
	s.Equal(0, s.listCalls)

	s.Require().Len(result.Messages, 2)
	s.Equal(models.RoleAssistant, result.Messages[1].Role)
	s.Equal(result.ClarifyingQuestion, result.Messages[1].Content)
}

func (s *ResearchWorkflowTestSuite) TestScopingFailureAsksAgain() {
	s.okTools()
	s.llm.on(activities.PurposeClarify, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return activities.LLMActivityOutput{}, temporal.NewNonRetryableApplicationError("provider down", "Fatal", nil)
	})

	result := s.run("jaguars")

	s.Equal(OutcomeClarification, result.Outcome)
	s.Equal(fallbackQuestion, result.ClarifyingQuestion)
	s.Equal(0, s.llm.count(activities.PurposeSupervisor))
}

func (s *ResearchWorkflowTestSuite) TestEmptyBriefAsksAgain() {
	s.okTools()
	s.llm.on(activities.PurposeBrief, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("", toolCall("b1", tools.ResearchQuestion, map[string]any{"research_brief": "  "})), nil
	})

	result := s.run("jaguars")

	s.Equal(OutcomeClarification, result.Outcome)
	s.Equal(fallbackQuestion, result.ClarifyingQuestion)
	s.Equal(0, s.llm.count(activities.PurposeSupervisor))
}

// TestHistoryIsCarriedIntoScoping: a follow-up run sees the earlier
// clarification round.
func (s *ResearchWorkflowTestSuite) TestHistoryIsCarriedIntoScoping() {
	s.okTools()
	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{
		History: []models.ConversationTurn{
			models.UserTurn("jaguars"),
			models.AssistantTurn("The animal or the car?"),
		},
		UserMessage: "The animal",
	})
	s.Require().NoError(s.env.GetWorkflowError())

	clarify := s.llm.calls(activities.PurposeClarify)
	s.Require().Len(clarify, 1)
	prompt := clarify[0].Conversation[0].Content
	s.Contains(prompt, "Human: jaguars\nAI: The animal or the car?\nHuman: The animal")
}

func (s *ResearchWorkflowTestSuite) TestEmptyRequestIsRejected() {
	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{UserMessage: "   "})

	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal("InvalidInput", appErr.Type())
}

func (s *ResearchWorkflowTestSuite) TestDecisionWithoutCallsStillDispatchesOneThread() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return textTurn("I will research this directly."), nil
	})

	result := s.run("Explain the history of the printing press")

	s.Equal([]string{"note: Brief: research the request in depth"}, result.Notes)
}

func (s *ResearchWorkflowTestSuite) TestSupervisorFailureFallsBackToBrief() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return activities.LLMActivityOutput{}, temporal.NewNonRetryableApplicationError("bad request", "Fatal", nil)
	})

	result := s.run("Explain the history of the printing press")

	s.Equal(OutcomeReport, result.Outcome)
	s.Equal([]string{"note: Brief: research the request in depth"}, result.Notes)
}

func (s *ResearchWorkflowTestSuite) TestTooManyThreadsAreTruncated() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("a", "b", "c", "d", "e"))

	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{
		UserMessage: "Compare five databases",
		Config:      models.ResearchConfig{MaxConcurrentResearchUnits: 2},
	})
	s.Require().NoError(s.env.GetWorkflowError())
	var result ResearchResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))

	s.Equal([]string{"note: a", "note: b"}, result.Notes)
}

func (s *ResearchWorkflowTestSuite) TestDuplicateTopicsAreKept() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("same topic", "same topic"))

	result := s.run("Research the same thing twice")

	s.Equal([]string{"note: same topic", "note: same topic"}, result.Notes)
}

// TestThinkOnlyTurnsAreAnsweredBeforeDelegating: reflection turns get a
// result and the supervisor is asked again.
func (s *ResearchWorkflowTestSuite) TestThinkOnlyTurnsAreAnsweredBeforeDelegating() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, func(in activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		if len(in.Conversation) == 1 {
			return toolTurn("", toolCall("think-1", tools.ThinkTool, map[string]any{"reflection": "two sub-topics"})), nil
		}
		return delegate("first", "second")(in)
	})

	result := s.run("Compare two things")

	s.Equal([]string{"note: first", "note: second"}, result.Notes)
	sup := s.llm.calls(activities.PurposeSupervisor)
	s.Require().Len(sup, 2)
	s.Require().Len(sup[1].Conversation, 3)
	reflection := sup[1].Conversation[2]
	s.Equal(models.RoleTool, reflection.Role)
	s.Equal("think-1", reflection.ToolCallID)
	s.Equal("Reflection recorded: two sub-topics", reflection.Content)
}

func (s *ResearchWorkflowTestSuite) TestEndlessReflectionFallsBackToBrief() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, func(in activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("", toolCall(fmt.Sprintf("think-%d", len(in.Conversation)), tools.ThinkTool, map[string]any{"reflection": "hmm"})), nil
	})

	result := s.run("Explain something")

	s.Equal(models.DefaultMaxSupervisorIterations, s.llm.count(activities.PurposeSupervisor))
	s.Equal([]string{"note: Brief: research the request in depth"}, result.Notes)
}

// TestMergeOrderIsDispatchOrder forces the second thread to finish first.
func (s *ResearchWorkflowTestSuite) TestMergeOrderIsDispatchOrder() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("T1", "T2", "T3"))

	thread := func(index int, delay time.Duration) {
		s.env.OnWorkflow(ResearchThreadWorkflow, mock.Anything, mock.MatchedBy(func(in ResearchThreadInput) bool {
			return in.Index == index
		})).After(delay).Return(func(_ workflow.Context, in ResearchThreadInput) (ResearchThreadResult, error) {
			return ResearchThreadResult{Notes: []string{"notes of " + in.SubTask}}, nil
		}).Once()
	}
	thread(0, 10*time.Minute)
	thread(1, time.Minute)
	thread(2, 5*time.Minute)

	result := s.run("Compare three things")

	s.Equal([]string{"notes of T1", "notes of T2", "notes of T3"}, result.Notes)
}

// TestPartialThreadFailureAddsFailureNote: one failed thread degrades the
// notes without failing the run.
func (s *ResearchWorkflowTestSuite) TestPartialThreadFailureAddsFailureNote() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("good topic", "bad topic"))
	s.llm.on(activities.PurposeResearch, func(in activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		if in.Conversation[0].Content == "bad topic" {
			return activities.LLMActivityOutput{}, temporal.NewNonRetryableApplicationError("model refused", "Fatal", nil)
		}
		return textTurn("findings"), nil
	})

	result := s.run("Compare good and bad")

	s.Require().Len(result.Notes, 2)
	s.Equal("note: good topic", result.Notes[0])
	s.True(strings.HasPrefix(result.Notes[1], "[research thread 2 failed] bad topic:"))
	s.Contains(result.Notes[1], "model refused")
	s.Equal("Final report", result.FinalReport)

	report := s.llm.calls(activities.PurposeReport)
	s.Require().Len(report, 1)
	s.Contains(report[0].Conversation[0].Content, "[research thread 2 failed]")
}

func (s *ResearchWorkflowTestSuite) TestAllThreadsFailedFailsTheRun() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("a", "b"))
	s.llm.on(activities.PurposeResearch, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return activities.LLMActivityOutput{}, temporal.NewNonRetryableApplicationError("model refused", "Fatal", nil)
	})

	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{UserMessage: "Compare a and b"})

	s.Require().True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(models.AppErrorAllThreadsFailed, appErr.Type())
	s.Equal(0, s.llm.count(activities.PurposeReport))
}

func (s *ResearchWorkflowTestSuite) TestIterationBoundFailsThread() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("endless", "finite"))
	s.llm.on(activities.PurposeResearch, func(in activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		if in.Conversation[0].Content == "endless" {
			return toolTurn("", toolCall(fmt.Sprintf("read-%d", len(in.Conversation)), "read_file", map[string]any{"path": "x"})), nil
		}
		return textTurn("done"), nil
	})

	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{
		UserMessage: "Research two things",
		Config:      models.ResearchConfig{MaxResearcherIterations: 3},
	})
	s.Require().NoError(s.env.GetWorkflowError())
	var result ResearchResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))

	s.Require().Len(result.Notes, 2)
	s.Contains(result.Notes[0], models.AppErrorIterationsExhausted)
	s.Equal("note: finite", result.Notes[1])
	s.Equal([]string{"read_file", "read_file", "read_file"}, s.invokedNames())
}

// --- Report stage ---

// TestReportToolsRunInListedOrder: results keep the call order and IDs,
// and the report text is the generating turn's text.
func (s *ResearchWorkflowTestSuite) TestReportToolsRunInListedOrder() {
	s.okTools()
	s.llm.on(activities.PurposeReport, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("# Report\nBody",
			toolCall("call-a", "write_file", map[string]any{"path": "report.md"}),
			toolCall("call-b", "read_file", map[string]any{"path": "report.md"}),
			toolCall("call-c", "write_file", map[string]any{"path": "copy.md"}),
		), nil
	})

	result := s.run("Write a report and save it")

	s.Equal("# Report\nBody", result.FinalReport)
	s.Equal(1, s.llm.count(activities.PurposeReport))
	s.Equal([]string{"write_file", "read_file", "write_file"}, s.invokedNames())
	// thread listing, report generation, fresh listing before the calls
	s.Equal(3, s.listCalls)

	s.Require().Len(result.ToolResults, 3)
	for i, id := range []string{"call-a", "call-b", "call-c"} {
		s.Equal(id, result.ToolResults[i].ToolCallID)
		s.False(result.ToolResults[i].IsError)
	}
	s.Equal("ok: read_file", result.ToolResults[1].Content)

	// generating turn followed by one tool turn per call
	tail := result.Messages[len(result.Messages)-4:]
	s.Equal("# Report\nBody", tail[0].Content)
	s.Equal("call-a", tail[1].ToolCallID)
	s.Equal("call-b", tail[2].ToolCallID)
	s.Equal("call-c", tail[3].ToolCallID)
}

// TestReportToolGoneFromFreshListing: the report stage resolves its calls
// against a fresh listing, so a tool that disappeared after generation
// yields a resolution error while the report text is kept.
func (s *ResearchWorkflowTestSuite) TestReportToolGoneFromFreshListing() {
	s.env.OnActivity("ListTools", mock.Anything).Return(
		func(context.Context) (activities.ListToolsOutput, error) {
			s.toolsMu.Lock()
			defer s.toolsMu.Unlock()
			s.listCalls++
			if s.listCalls >= 3 {
				return activities.ListToolsOutput{Tools: fileTools()[1:]}, nil
			}
			return activities.ListToolsOutput{Tools: fileTools()}, nil
		})
	s.env.OnActivity("InvokeTool", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.InvokeToolInput) (activities.InvokeToolOutput, error) {
			s.toolsMu.Lock()
			s.invocations = append(s.invocations, in)
			s.toolsMu.Unlock()
			return activities.InvokeToolOutput{Content: "ok: " + in.Name}, nil
		}).Maybe()
	s.llm.on(activities.PurposeReport, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("# Report",
			toolCall("call-a", "write_file", map[string]any{"path": "report.md"}),
			toolCall("call-b", "read_file", map[string]any{"path": "report.md"}),
		), nil
	})

	result := s.run("Write a report and save it")

	s.Equal("# Report", result.FinalReport)
	s.Equal(3, s.listCalls)
	s.Equal([]string{"read_file"}, s.invokedNames())
	s.Require().Len(result.ToolResults, 2)
	s.Equal("call-a", result.ToolResults[0].ToolCallID)
	s.True(result.ToolResults[0].IsError)
	s.Contains(result.ToolResults[0].Content, "write_file")
	s.False(result.ToolResults[1].IsError)
}

func (s *ResearchWorkflowTestSuite) TestReportWithoutToolsMakesNoFurtherCalls() {
	s.okTools()

	result := s.run("Write a report")

	s.Equal("Final report", result.FinalReport)
	s.Empty(result.ToolResults)
	s.Empty(s.invokedNames())
	// one listing for the research thread, one for the report
	s.Equal(2, s.listCalls)
}

func (s *ResearchWorkflowTestSuite) TestReportUnresolvedToolKeepsReport() {
	s.okTools()
	s.llm.on(activities.PurposeReport, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("Report text",
			toolCall("call-1", "upload_to_cloud", map[string]any{}),
			toolCall("call-2", "write_file", map[string]any{"path": "r.md"}),
		), nil
	})

	result := s.run("Write a report")

	s.Equal("Report text", result.FinalReport)
	s.Require().Len(result.ToolResults, 2)
	s.True(result.ToolResults[0].IsError)
	s.Contains(result.ToolResults[0].Content, `"upload_to_cloud" is not provided`)
	s.False(result.ToolResults[1].IsError)
	s.Equal([]string{"write_file"}, s.invokedNames())
}

func (s *ResearchWorkflowTestSuite) TestReportToolFailureIsRecorded() {
	s.mockTools(fileTools(), func(in activities.InvokeToolInput) (activities.InvokeToolOutput, error) {
		if strings.Contains(in.Arguments, "locked") {
			return activities.InvokeToolOutput{}, errors.New("disk unavailable")
		}
		if strings.Contains(in.Arguments, "denied") {
			return activities.InvokeToolOutput{Content: "permission denied", IsError: true}, nil
		}
		return activities.InvokeToolOutput{Content: "written"}, nil
	})
	s.llm.on(activities.PurposeReport, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("Report text",
			toolCall("call-1", "write_file", map[string]any{"path": "locked.md"}),
			toolCall("call-2", "write_file", map[string]any{"path": "denied.md"}),
			toolCall("call-3", "write_file", map[string]any{"path": "ok.md"}),
		), nil
	})

	result := s.run("Write a report")

	s.Equal("Report text", result.FinalReport)
	s.Require().Len(result.ToolResults, 3)
	s.True(result.ToolResults[0].IsError)
	s.Contains(result.ToolResults[0].Content, "tool write_file failed:")
	s.Contains(result.ToolResults[0].Content, "disk unavailable")
	s.True(result.ToolResults[1].IsError)
	s.Equal("permission denied", result.ToolResults[1].Content)
	s.Equal("written", result.ToolResults[2].Content)
}

func (s *ResearchWorkflowTestSuite) TestReportListingFailureWritesWithoutTools() {
	s.env.OnActivity("ListTools", mock.Anything).
		Return(activities.ListToolsOutput{}, temporal.NewNonRetryableApplicationError("gateway down", "Fatal", nil))
	s.llm.on(activities.PurposeSupervisor, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return textTurn("research it"), nil
	})
	s.env.OnWorkflow(ResearchThreadWorkflow, mock.Anything, mock.Anything).
		Return(ResearchThreadResult{Notes: []string{"mocked note"}}, nil)

	result := s.run("Write a report")

	s.Equal("Final report", result.FinalReport)
	report := s.llm.calls(activities.PurposeReport)
	s.Require().Len(report, 1)
	s.Empty(report[0].Tools)
}

// --- Guidance and status ---

func (s *ResearchWorkflowTestSuite) TestGuidanceReachesSupervisorAndReport() {
	s.okTools()
	s.env.ExecuteWorkflow(DeepResearchWorkflow, ResearchInput{
		UserMessage: "Write a report",
		Guidance:    instructions.MergeInput{ProjectGuidance: "Prefer primary sources."},
	})
	s.Require().NoError(s.env.GetWorkflowError())

	sup := s.llm.calls(activities.PurposeSupervisor)
	s.Require().Len(sup, 1)
	s.Contains(sup[0].SystemPrompt, "Prefer primary sources.")
	report := s.llm.calls(activities.PurposeReport)
	s.Require().Len(report, 1)
	s.Contains(report[0].Conversation[0].Content, "Prefer primary sources.")
	s.Contains(report[0].Conversation[0].Content, "note: Brief topic")
}

func (s *ResearchWorkflowTestSuite) TestStatusQueryAfterCompletion() {
	s.okTools()
	s.llm.on(activities.PurposeSupervisor, delegate("one", "two"))

	s.run("Compare one and two")

	encoded, err := s.env.QueryWorkflow(QueryGetResearchStatus)
	s.Require().NoError(err)
	var status ResearchStatus
	s.Require().NoError(encoded.Get(&status))

	s.Equal(PhaseDone, status.Phase)
	s.Equal("Brief: research the request in depth", status.ResearchBrief)
	s.Require().Len(status.Threads, 2)
	s.Equal(ThreadCompleted, status.Threads[0].State)
	s.Equal("one", status.Threads[0].SubTask)
	s.True(strings.HasSuffix(status.Threads[1].WorkflowID, "/thread-2"))
	s.Equal(2, status.NotesCount)
	s.Positive(status.TokenUsage.TotalTokens)
}
