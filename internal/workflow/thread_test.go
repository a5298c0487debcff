package workflow

import (
	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/tools"
)

func (s *ResearchWorkflowTestSuite) runThread(subTask string) ResearchThreadResult {
	s.env.ExecuteWorkflow(ResearchThreadWorkflow, ResearchThreadInput{Index: 0, SubTask: subTask})
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var result ResearchThreadResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	return result
}

// TestThread_ToolLoop: think_tool is answered locally, unknown tools get an
// error result and real tools go through the gateway.
func (s *ResearchWorkflowTestSuite) TestThread_ToolLoop() {
	s.okTools()
	s.llm.on(activities.PurposeResearch, func(in activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		if len(in.Conversation) == 1 {
			return toolTurn("",
				toolCall("t1", tools.ThinkTool, map[string]any{"reflection": "start with the file"}),
				toolCall("t2", "read_file", map[string]any{"path": "data.txt"}),
				toolCall("t3", "web_search", map[string]any{"query": "x"}),
			), nil
		}
		return textTurn("all done"), nil
	})

	result := s.runThread("topic")

	s.False(result.Failed)
	s.Equal([]string{"note: topic"}, result.Notes)
	s.Equal(2, result.Iterations)
	s.Equal(1, result.ToolCalls)
	s.Equal([]string{"read_file"}, s.invokedNames())

	research := s.llm.calls(activities.PurposeResearch)
	s.Require().Len(research, 2)
	conv := research[1].Conversation
	s.Require().Len(conv, 5)
	s.Equal("Reflection recorded: start with the file", conv[2].Content)
	s.Equal("ok: read_file", conv[3].Content)
	s.True(conv[4].IsError)
	s.Contains(conv[4].Content, "web_search")

	// the thread sees gateway tools plus think_tool
	_, hasThink := models.FindTool(research[0].Tools, tools.ThinkTool)
	s.True(hasThink)
	_, hasRead := models.FindTool(research[0].Tools, "read_file")
	s.True(hasRead)
}

func (s *ResearchWorkflowTestSuite) TestThread_CompressFallsBackToFinalAnswer() {
	s.okTools()
	s.llm.on(activities.PurposeCompress, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return textTurn("  "), nil
	})

	result := s.runThread("topic")

	s.False(result.Failed)
	s.Equal([]string{"findings for topic"}, result.Notes)
}

func (s *ResearchWorkflowTestSuite) TestThread_CompressSeesWholeConversation() {
	s.okTools()

	s.runThread("topic")

	compress := s.llm.calls(activities.PurposeCompress)
	s.Require().Len(compress, 1)
	conv := compress[0].Conversation
	s.Require().Len(conv, 3)
	s.Equal("topic", conv[0].Content)
	s.Equal("findings for topic", conv[1].Content)
	s.Equal(models.RoleUser, conv[2].Role)
	s.Empty(compress[0].Tools)
}

func (s *ResearchWorkflowTestSuite) TestThread_DuplicateCallIDsFailThread() {
	s.okTools()
	s.llm.on(activities.PurposeResearch, func(activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
		return toolTurn("",
			toolCall("dup", "read_file", map[string]any{"path": "a"}),
			toolCall("dup", "read_file", map[string]any{"path": "b"}),
		), nil
	})

	result := s.runThread("topic")

	s.True(result.Failed)
	s.Contains(result.Error, "malformed model output")
	s.Empty(result.Notes)
	s.Empty(s.invokedNames())
}
