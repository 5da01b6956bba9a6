package agent

import (
	"encoding/json"
	"strings"
)

const (
	toolCallPrefix    = "TOOL_CALL:"
	finalAnswerPrefix = "FINAL_ANSWER:"
)

// decision is the parsed outcome of one planning response.
type decision struct {
	finished   bool
	content    string
	toolName   string
	parameters map[string]any

	// invalid carries a per-call argument error from the native tool-call
	// path; the call is folded into the transcript as a failed step instead
	// of aborting the turn.
	invalid string
}

// parseResponse interprets a planning response under the line protocol. The
// parser is total: the first line carrying a recognized prefix decides the
// outcome, and anything else, including a TOOL_CALL with broken syntax or
// invalid parameter JSON, becomes a final answer holding the raw text.
func parseResponse(text string) decision {
	trimmed := strings.TrimSpace(text)
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		l := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(l, finalAnswerPrefix); ok {
			parts := append([]string{rest}, lines[i+1:]...)
			return decision{finished: true, content: strings.TrimSpace(strings.Join(parts, "\n"))}
		}
		if rest, ok := strings.CutPrefix(l, toolCallPrefix); ok {
			if d, ok := parseToolCall(rest); ok {
				return d
			}
			return decision{finished: true, content: trimmed}
		}
	}
	return decision{finished: true, content: trimmed}
}

// parseToolCall parses `name({json-object})` from the text after the prefix.
func parseToolCall(s string) (decision, bool) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open <= 0 || end < open {
		return decision{}, false
	}
	name := strings.TrimSpace(s[:open])
	if name == "" || strings.ContainsAny(name, " \t") {
		return decision{}, false
	}
	argsText := strings.TrimSpace(s[open+1 : end])
	if argsText == "" {
		argsText = "{}"
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(argsText), &params); err != nil {
		return decision{}, false
	}
	return decision{toolName: name, parameters: params}, true
}
