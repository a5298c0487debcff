package instructions

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the layout of the current date shown to the model.
const DateFormat = "Mon Jan 2, 2006"

// FormatDate renders t in DateFormat.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

const clarifyTemplate = `These are the messages exchanged so far with the user asking for the report:
<Messages>
%s
</Messages>

Today's date is %s.

Assess whether you need to ask a clarifying question, or if the user has already provided enough information for you to start research.
IMPORTANT: If you can see in the messages history that you have already asked a clarifying question, you almost always do not need to ask another one. Only ask another question if ABSOLUTELY NECESSARY.

If there are acronyms, abbreviations, or unknown terms, ask the user to clarify.
If you need to ask a question:
- Be concise while gathering all necessary information
- Gather everything needed to carry out the research task in a concise, well-structured manner
- Use bullet points or numbered lists for clarity, formatted as markdown
- Don't ask for unnecessary information, or information the user has already provided

Answer by calling the clarify_with_user tool exactly once:
- need_clarification: true if a clarifying question is needed, false otherwise
- question: the clarifying question, or "" when none is needed
- verification: when no question is needed, a short message acknowledging the request, summarizing what you understood and saying that research starts now; "" otherwise`

const briefTemplate = `You will be given a set of messages exchanged so far between yourself and the user.
Your job is to translate these messages into a detailed and concrete research question that will be used to guide the research.

The messages exchanged so far:
<Messages>
%s
</Messages>

Today's date is %s.

Guidelines:
1. Maximize specificity and detail. Include all known user preferences and list the key attributes or dimensions to consider.
2. Fill unstated but necessary dimensions as open-ended. Do not invent constraints the user did not state.
3. Avoid unwarranted assumptions. If the user has not provided a detail, say that it is unspecified.
4. Phrase the request from the first person, as if written by the user.
5. Name the sources to prefer when relevant (official sites, primary sources, peer-reviewed work).

Answer by calling the research_question tool exactly once with the complete research brief.`

const supervisorTemplate = `You are a research supervisor. Your job is to conduct research by calling the conduct_research tool. For context, today's date is %s.

<Task>
Decide how to split the research brief you are given into sub-topics and delegate them with conduct_research. Each conduct_research call starts one research sub-agent; all calls made in the same turn run in parallel.
</Task>

<Available Tools>
1. conduct_research: delegate one research task to a specialized sub-agent
2. think_tool: reflect and plan before delegating
3. research_complete: indicate that no research is needed
</Available Tools>

<Hard Limits>
- Use at most %d parallel conduct_research calls in one turn.
- Use at most %d turns in total, including reflection with think_tool.
- Bias towards a single sub-agent. Only parallelize when the brief clearly splits into independent sub-topics, such as a comparison of several options.
</Hard Limits>

<Scaling Rules>
- Simple fact-finding, lists and rankings: one sub-agent.
- Comparisons: one sub-agent per element being compared.
- Each research_topic must be self-contained: sub-agents cannot see each other's work or the brief.
- Do not use acronyms or abbreviations in research topics.
</Scaling Rules>`

const researcherTemplate = `You are a research assistant conducting research on the user's input topic. For context, today's date is %s.

<Task>
Use the tools you are given to gather information about the topic, then answer with a detailed summary of what you found.
</Task>

<Hard Limits>
- You have at most %d turns. Stop calling tools when you can answer confidently or the last turns add nothing new.
- Use think_tool after gathering information to assess what you have and what is missing.
- When you are done, answer without calling any tool.
</Hard Limits>`

const compressTemplate = `You are a research assistant that has conducted research on a topic by calling several tools. Your job is now to clean up the findings while preserving all relevant information. For context, today's date is %s.

<Task>
Clean up the information gathered from tool calls and reflections in the existing messages.
All relevant information should be repeated and rewritten verbatim, in a cleaner format.
Remove only information that is clearly irrelevant or duplicated.
</Task>

<Output Format>
**List of Queries and Tool Calls Made**
**Fully Comprehensive Findings**
**List of All Relevant Sources (with citations in the report)**
</Output Format>`

// CompressRequest is the user turn that asks a research thread to compress
// its own conversation.
const CompressRequest = "All above messages are about research conducted by an AI researcher. Please clean up these findings.\n\nDO NOT summarize the information. Return the raw information in a cleaner format. Make sure all relevant information is preserved."

const reportTemplate = `Based on all the research conducted, create a comprehensive, well-structured answer to the overall research brief:
<Research Brief>
%s
</Research Brief>

Today's date is %s.

Here are the findings from the research that you conducted:
<Findings>
%s
</Findings>

Create a detailed answer to the overall research brief that:
1. Is well-organized with proper headings (# for title, ## for sections, ### for subsections)
2. Includes specific facts and insights from the research
3. References relevant sources using [Title](URL) format
4. Provides a balanced, thorough analysis
5. Includes a "Sources" section at the end with all referenced links

Write the report in the same language as the research brief.

You can also use the available file tools, for example to save the report to a markdown file. Any tool calls you make run after the report is written; the report text you return is the final answer.`

// ClarifyPrompt asks the model whether a clarifying question is needed.
// transcript is the conversation rendered with models.BufferString.
func ClarifyPrompt(transcript, date string) string {
	return fmt.Sprintf(clarifyTemplate, transcript, date)
}

// BriefPrompt asks the model to write the research brief.
func BriefPrompt(transcript, date string) string {
	return fmt.Sprintf(briefTemplate, transcript, date)
}

// SupervisorPrompt is the supervisor's system prompt.
func SupervisorPrompt(date string, maxConcurrentUnits, maxIterations int) string {
	return fmt.Sprintf(supervisorTemplate, date, maxConcurrentUnits, maxIterations)
}

// ResearcherPrompt is a research thread's system prompt.
func ResearcherPrompt(date string, maxIterations int) string {
	return fmt.Sprintf(researcherTemplate, date, maxIterations)
}

// CompressPrompt is the system prompt of a research thread's compress call.
func CompressPrompt(date string) string {
	return fmt.Sprintf(compressTemplate, date)
}

// ReportPrompt asks the model for the final report.
func ReportPrompt(brief, findings, date, guidance string) string {
	return WithGuidance(fmt.Sprintf(reportTemplate, brief, date, findings), guidance)
}

// WithGuidance appends user guidance to a prompt. Empty guidance leaves the
// prompt unchanged.
func WithGuidance(prompt, guidance string) string {
	if guidance = strings.TrimSpace(guidance); guidance != "" {
		prompt += "\n\n<User Guidance>\n" + guidance + "\n</User Guidance>"
	}
	return prompt
}
