package tools

func init() {
	RegisterSpec(SpecEntry{Name: ClarifyWithUser, Constructor: NewClarifyWithUserSpec, Groups: []string{GroupScope}})
	RegisterSpec(SpecEntry{Name: ResearchQuestion, Constructor: NewResearchQuestionSpec, Groups: []string{GroupScope}})
	RegisterSpec(SpecEntry{Name: ConductResearch, Constructor: NewConductResearchSpec, Groups: []string{GroupSupervisor}})
	RegisterSpec(SpecEntry{Name: ThinkTool, Constructor: NewThinkToolSpec, Groups: []string{GroupSupervisor, GroupResearcher}})
	RegisterSpec(SpecEntry{Name: ResearchComplete, Constructor: NewResearchCompleteSpec, Groups: []string{GroupSupervisor}})
}

// NewClarifyWithUserSpec creates the structured-output tool of the clarify call.
func NewClarifyWithUserSpec() ToolSpec {
	return ToolSpec{
		Name:        ClarifyWithUser,
		Description: "Report whether the request needs a clarifying question before research can start.",
		Parameters: []ToolParameter{
			{
				Name:        "need_clarification",
				Type:        "boolean",
				Description: "Whether the user needs to be asked a clarifying question.",
				Required:    true,
			},
			{
				Name:        "question",
				Type:        "string",
				Description: "A question to ask the user to clarify the report scope.",
				Required:    true,
			},
			{
				Name:        "verification",
				Type:        "string",
				Description: "Message confirming that research will start with the information provided.",
				Required:    true,
			},
		},
	}
}

// NewResearchQuestionSpec creates the structured-output tool of the brief call.
func NewResearchQuestionSpec() ToolSpec {
	return ToolSpec{
		Name:        ResearchQuestion,
		Description: "Record the research brief that will guide the research.",
		Parameters: []ToolParameter{
			{
				Name:        "research_brief",
				Type:        "string",
				Description: "A research question that will be used to guide the research.",
				Required:    true,
			},
		},
	}
}

// NewConductResearchSpec creates the supervisor's delegation tool. Each call
// becomes one research thread.
func NewConductResearchSpec() ToolSpec {
	return ToolSpec{
		Name:        ConductResearch,
		Description: "Delegate a research task to a specialized sub-agent. Call once per independent sub-topic; calls in one turn run in parallel.",
		Parameters: []ToolParameter{
			{
				Name:        "research_topic",
				Type:        "string",
				Description: "The topic to research. Should be a single topic, described in high detail (at least a paragraph).",
				Required:    true,
			},
		},
	}
}

// NewThinkToolSpec creates the reflection tool. The workflow answers it
// locally without side effects.
func NewThinkToolSpec() ToolSpec {
	return ToolSpec{
		Name:        ThinkTool,
		Description: "Use for strategic reflection on research progress and planning. Does not gather information.",
		Parameters: []ToolParameter{
			{
				Name:        "reflection",
				Type:        "string",
				Description: "Your reflection on progress, gaps and next steps.",
				Required:    true,
			},
		},
	}
}

// NewResearchCompleteSpec creates the tool the supervisor calls when no more
// research is needed.
func NewResearchCompleteSpec() ToolSpec {
	return ToolSpec{
		Name:        ResearchComplete,
		Description: "Call this tool to indicate that the research is complete.",
	}
}
