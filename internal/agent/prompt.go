package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/tools"
)

const nativeSystem = `You answer questions about a personal collection of notes and documents.
Use the available tools to gather evidence before answering; call one tool at a
time and adjust your next step to what each result shows. Answer in plain text
and cite document paths where they support the answer. If the collection holds
nothing relevant, say so plainly.`

const textProtocolHeader = `You answer questions about a personal collection of notes and documents
by calling search tools. Reply with exactly one line in one of two forms:

TOOL_CALL: tool_name({"param": "value"})
FINAL_ANSWER: <your answer in plain text>

Never reply with anything else. Available tools:
`

const rewriteSystem = `A semantic search over a personal document collection found nothing.
Suggest better literal keywords for an exact-text search of the same material.
Respond with only the keywords, no explanation, no quotes.`

const synthesisSystem = `The lookup budget for this question is exhausted. Synthesize the best
answer you can from the tool results provided, plainly noting where the
evidence is thin. Respond with the answer text only.`

// textSystemPrompt embeds the tool catalog into the line-protocol prompt for
// models without native tool calling.
func textSystemPrompt(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString(textProtocolHeader)
	for _, t := range reg.List() {
		b.WriteString("\n- ")
		b.WriteString(t.Name())
		b.WriteString(": ")
		b.WriteString(t.Description())
		if schema, err := json.Marshal(t.InputSchema()); err == nil {
			b.WriteString("\n  parameters: ")
			b.Write(schema)
		}
	}
	return b.String()
}

// planningPrompt is the single user message for one planning round: the bare
// question first, then question plus merged evidence on every later round.
func (o *Orchestrator) planningPrompt(t *turn, iteration int) string {
	if len(t.steps) == 0 {
		return t.question
	}
	remaining := o.opts.MaxIterations - iteration + 1
	return fmt.Sprintf(
		"Question: %s\n\nTool results so far, most relevant first:\n\n%s\nYou may take up to %d more tool steps before answering.",
		t.question, mergeContext(t.steps, o.opts.ContextBudget), remaining)
}

func synthesisPrompt(t *turn, budget int) string {
	return fmt.Sprintf("Question: %s\n\nTool results gathered:\n\n%s", t.question, mergeContext(t.steps, budget))
}
