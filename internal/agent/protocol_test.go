package agent

import "testing"

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name        string
		in          string
		wantFinal   bool
		wantContent string
		wantTool    string
		wantParams  map[string]any
	}{
		{
			name:       "tool call",
			in:         `TOOL_CALL: find_thing({"info_type":"vin"})`,
			wantTool:   "find_thing",
			wantParams: map[string]any{"info_type": "vin"},
		},
		{
			name:        "final answer",
			in:          "FINAL_ANSWER: done",
			wantFinal:   true,
			wantContent: "done",
		},
		{
			name:        "unrecognized line is an implicit final answer",
			in:          "I think the answer is 42.",
			wantFinal:   true,
			wantContent: "I think the answer is 42.",
		},
		{
			name:        "invalid parameter json falls back to final answer",
			in:          `TOOL_CALL: find_thing({info_type: vin})`,
			wantFinal:   true,
			wantContent: `TOOL_CALL: find_thing({info_type: vin})`,
		},
		{
			name:        "missing parens falls back to final answer",
			in:          "TOOL_CALL: find_thing",
			wantFinal:   true,
			wantContent: "TOOL_CALL: find_thing",
		},
		{
			name:       "empty argument object",
			in:         "TOOL_CALL: list_all()",
			wantTool:   "list_all",
			wantParams: map[string]any{},
		},
		{
			name:       "preamble before the call line",
			in:         "Let me check the notes first.\nTOOL_CALL: find_thing({\"q\": \"x\"})",
			wantTool:   "find_thing",
			wantParams: map[string]any{"q": "x"},
		},
		{
			name:        "final answer keeps following lines",
			in:          "FINAL_ANSWER: first line\nsecond line",
			wantFinal:   true,
			wantContent: "first line\nsecond line",
		},
		{
			name:        "empty input",
			in:          "   ",
			wantFinal:   true,
			wantContent: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := parseResponse(tc.in)
			if d.finished != tc.wantFinal {
				t.Fatalf("finished = %v, want %v", d.finished, tc.wantFinal)
			}
			if tc.wantFinal {
				if d.content != tc.wantContent {
					t.Errorf("content = %q, want %q", d.content, tc.wantContent)
				}
				return
			}
			if d.toolName != tc.wantTool {
				t.Errorf("tool = %q, want %q", d.toolName, tc.wantTool)
			}
			if len(d.parameters) != len(tc.wantParams) {
				t.Errorf("parameters = %v, want %v", d.parameters, tc.wantParams)
			}
			for k, want := range tc.wantParams {
				if d.parameters[k] != want {
					t.Errorf("parameters[%q] = %v, want %v", k, d.parameters[k], want)
				}
			}
		})
	}
}
