package workflow

import (
	"encoding/json"
	"strings"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/tools"
)

// fallbackQuestion is asked when scoping produced neither a brief nor a
// usable question.
const fallbackQuestion = "Could you tell me more about what you would like me to research, including the scope and any aspects you want me to focus on?"

// clarifyDecision is the argument object of clarify_with_user.
type clarifyDecision struct {
	NeedClarification bool   `json:"need_clarification"`
	Question          string `json:"question"`
	Verification      string `json:"verification"`
}

// scope turns the conversation into a research brief, or into a clarifying
// question when the request is not specific enough.
//
// It never fails: model errors and malformed output are treated as "no
// brief" and surface as a question, so the caller is asked again rather
// than researching the wrong thing.
func (r *researchRun) scope(ctx workflow.Context) StageUpdate {
	logger := workflow.GetLogger(ctx)
	date := instructions.FormatDate(workflow.Now(ctx))

	decision, content, ok := r.clarify(ctx, date)
	if !ok {
		return askUser(firstNonEmpty(content, fallbackQuestion))
	}
	if decision.NeedClarification {
		logger.Info("Scoping needs clarification")
		return askUser(firstNonEmpty(decision.Question, content, fallbackQuestion))
	}

	verification := models.AssistantTurn(firstNonEmpty(decision.Verification, "Thanks, I have what I need and will start the research now."))
	transcript := make([]models.ConversationTurn, 0, len(r.state.Messages)+1)
	transcript = append(append(transcript, r.state.Messages...), verification)
	brief, ok := r.writeBrief(ctx, date, transcript)
	if !ok {
		update := askUser(fallbackQuestion)
		update.Messages = append([]models.ConversationTurn{verification}, update.Messages...)
		return update
	}

	logger.Info("Research brief written", "brief_len", len(brief))
	return StageUpdate{
		Stage:         stageScope,
		Messages:      []models.ConversationTurn{verification, models.AssistantTurn(brief)},
		ResearchBrief: brief,
	}
}

// clarify asks whether a question is needed. ok is false when the call
// failed or the model did not answer through the tool; content is the
// model's free text, if any.
func (r *researchRun) clarify(ctx workflow.Context, date string) (clarifyDecision, string, bool) {
	out, err := r.callLLM(ctx, activities.LLMActivityInput{
		Purpose:      activities.PurposeClarify,
		Conversation: []models.ConversationTurn{models.UserTurn(instructions.ClarifyPrompt(models.BufferString(r.state.Messages), date))},
		Tools:        tools.Declarations(tools.ClarifyWithUser),
		ModelConfig:  r.config.Models.Scope,
	})
	if err != nil {
		workflow.GetLogger(ctx).Warn("Clarify call failed, asking the user again", "error", err)
		return clarifyDecision{}, "", false
	}

	content := strings.TrimSpace(out.Turn.Content)
	call, found := findCall(out.Turn, tools.ClarifyWithUser)
	if !found {
		return clarifyDecision{}, content, false
	}
	var decision clarifyDecision
	if err := json.Unmarshal([]byte(call.Arguments), &decision); err != nil {
		workflow.GetLogger(ctx).Warn("Malformed clarify_with_user arguments", "error", err)
		return clarifyDecision{}, content, false
	}
	decision.Question = strings.TrimSpace(decision.Question)
	decision.Verification = strings.TrimSpace(decision.Verification)
	return decision, content, true
}

// writeBrief asks for the structured research brief. ok is false when the
// call failed or produced no brief.
func (r *researchRun) writeBrief(ctx workflow.Context, date string, messages []models.ConversationTurn) (string, bool) {
	out, err := r.callLLM(ctx, activities.LLMActivityInput{
		Purpose:      activities.PurposeBrief,
		Conversation: []models.ConversationTurn{models.UserTurn(instructions.BriefPrompt(models.BufferString(messages), date))},
		Tools:        tools.Declarations(tools.ResearchQuestion),
		ModelConfig:  r.config.Models.Scope,
	})
	if err != nil {
		workflow.GetLogger(ctx).Warn("Brief call failed, asking the user again", "error", err)
		return "", false
	}
	call, found := findCall(out.Turn, tools.ResearchQuestion)
	if !found {
		return "", false
	}
	brief := call.StringArgument("research_brief")
	return brief, brief != ""
}

func askUser(question string) StageUpdate {
	return StageUpdate{
		Stage:              stageScope,
		Messages:           []models.ConversationTurn{models.AssistantTurn(question)},
		ClarifyingQuestion: question,
	}
}

// findCall returns the first call to the named tool.
func findCall(turn models.ConversationTurn, name string) (models.ToolCall, bool) {
	for _, call := range turn.ToolCalls {
		if call.Name == name {
			return call, true
		}
	}
	return models.ToolCall{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
