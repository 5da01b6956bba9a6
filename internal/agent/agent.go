// Package agent runs the plan, act, observe loop that lets a completion
// model chain search tools until it can answer a question about the indexed
// collection.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/tools"
)

// Tool integration modes. Native sends JSON schemas through the completion
// port; text embeds the catalog in the prompt and parses the line protocol.
const (
	ModeNative = "native"
	ModeText   = "text"
)

// Options bound every turn the orchestrator runs.
type Options struct {
	MaxIterations int    // planning rounds before forced synthesis
	ContextBudget int    // chars of merged tool results per prompt
	ToolMode      string // native or text
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 5
	}
	if o.ContextBudget <= 0 {
		o.ContextBudget = 8000
	}
	if o.ToolMode != ModeText {
		o.ToolMode = ModeNative
	}
	return o
}

// ToolCall records one executed invocation in a turn's trace.
type ToolCall struct {
	Tool  string         `json:"tool"`
	Args  map[string]any `json:"args,omitempty"`
	Found int            `json:"found"`
	Error string         `json:"error,omitempty"`
}

// Answer is the terminal state of a turn.
type Answer struct {
	TurnID     string     `json:"turn_id"`
	Text       string     `json:"text"`
	Iterations int        `json:"iterations"`
	ToolTrace  []ToolCall `json:"tool_trace"`
}

// Orchestrator runs agent turns over a shared tool registry. It holds no
// per-turn state, so any number of turns may run concurrently against the
// same read-mostly index.
type Orchestrator struct {
	completer llm.Completer
	registry  *tools.Registry
	logger    *slog.Logger
	opts      Options
}

// New wires an orchestrator. The registry is the closed tool set the model
// may call; the completer is the only thing that decides when to stop.
func New(completer llm.Completer, registry *tools.Registry, logger *slog.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		registry:  registry,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// turn is the transient state of one question: the call log and the one-shot
// refinement flag. Destroyed when the loop terminates.
type turn struct {
	id       string
	question string
	steps    []step
	refined  bool
}

// Ask answers one question. It loops planning, tool execution, and context
// merge until the model emits a final answer or the iteration cap trips; the
// cap triggers one forced synthesis pass that always yields some text.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	return o.run(ctx, question, nil)
}

func (o *Orchestrator) run(ctx context.Context, question string, sink eventSink) (*Answer, error) {
	t := &turn{id: uuid.NewString(), question: question}
	log := o.logger.With(slog.String("turn", t.id))
	emit := func(e Event) {
		if sink != nil {
			e.TurnID = t.id
			sink(e)
		}
	}
	log.Info("agent: turn started", slog.String("mode", o.opts.ToolMode))

	iterations := 0
	for iterations < o.opts.MaxIterations {
		iterations++

		resp, err := o.completer.Complete(ctx, o.planningRequest(t, iterations))
		if err != nil {
			if ctx.Err() != nil {
				// Canceled turns still terminate with whatever was gathered.
				log.Warn("agent: turn canceled", slog.Int("iteration", iterations))
				return o.emitAnswer(t, iterations, o.localAnswer(t), false, false, emit), nil
			}
			emit(Event{Type: EventResponseEnd, Error: err.Error()})
			return nil, fmt.Errorf("agent: planning: %w", err)
		}

		calls, final, done := o.decide(resp)
		if done {
			log.Info("agent: final answer", slog.Int("iterations", iterations))
			return o.emitAnswer(t, iterations, final, false, false, emit), nil
		}
		for _, call := range calls {
			o.execute(ctx, t, call, iterations, emit, log)
		}
		if ctx.Err() != nil {
			log.Warn("agent: turn canceled", slog.Int("iteration", iterations))
			return o.emitAnswer(t, iterations, o.localAnswer(t), false, false, emit), nil
		}
	}

	log.Info("agent: iteration cap reached", slog.Int("iterations", iterations))
	emit(Event{Type: EventResponseStart, Iteration: iterations})
	text, streamed := o.synthesize(ctx, t, sink != nil, emit)
	return o.emitAnswer(t, iterations, text, true, streamed, emit), nil
}

// decide converts one completion into tool invocations or a final answer.
// done is true when the turn should terminate with final as its text.
func (o *Orchestrator) decide(resp *llm.Response) (calls []decision, final string, done bool) {
	if o.opts.ToolMode == ModeText {
		d := parseResponse(resp.Text)
		if d.finished {
			return nil, d.content, true
		}
		return []decision{d}, "", false
	}

	if len(resp.ToolCalls) == 0 {
		return nil, strings.TrimSpace(resp.Text), true
	}
	for _, tc := range resp.ToolCalls {
		d := decision{toolName: tc.Name}
		args := strings.TrimSpace(tc.Arguments)
		if args == "" {
			args = "{}"
		}
		if err := json.Unmarshal([]byte(args), &d.parameters); err != nil {
			d.invalid = fmt.Sprintf("invalid tool arguments: %v", err)
		}
		calls = append(calls, d)
	}
	return calls, "", false
}

// execute runs one tool call and folds the outcome into the call log. Every
// failure, unknown names included, becomes an error entry; the loop never
// aborts on a tool.
func (o *Orchestrator) execute(ctx context.Context, t *turn, d decision, iteration int, emit func(Event), log *slog.Logger) {
	emit(Event{Type: EventToolStart, Iteration: iteration, Tool: d.toolName, Args: d.parameters})

	st := step{tool: d.toolName, args: d.parameters}
	if d.invalid != "" {
		st.err = d.invalid
	} else if res, err := o.registry.Execute(ctx, d.toolName, d.parameters); err != nil {
		st.err = err.Error()
	} else {
		st.result = res
	}
	t.steps = append(t.steps, st)

	if st.err != "" {
		log.Warn("agent: tool failed", slog.String("tool", d.toolName), slog.String("error", st.err))
		emit(Event{Type: EventToolResult, Iteration: iteration, Tool: d.toolName, Error: st.err})
		return
	}
	log.Debug("agent: tool executed", slog.String("tool", d.toolName), slog.Int("found", st.result.Found))
	emit(Event{Type: EventToolResult, Iteration: iteration, Tool: d.toolName, Found: st.result.Found})

	// A zero-hit semantic search gets one literal retry per turn.
	if d.toolName == "search_semantic" && st.result.Found == 0 && !t.refined {
		t.refined = true
		o.refine(ctx, t, d, iteration, emit, log)
	}
}

// refine asks the model for literal keywords and retries once through the
// exact-text tool. Bounded: one rewrite completion, one retry, per turn.
func (o *Orchestrator) refine(ctx context.Context, t *turn, d decision, iteration int, emit func(Event), log *slog.Logger) {
	keywords := o.rewriteQuery(ctx, t.question, stringParam(d.parameters, "query"))
	if keywords == "" {
		return
	}
	log.Debug("agent: retrying with literal keywords", slog.String("keywords", keywords))
	o.execute(ctx, t, decision{
		toolName:   "search_exact_text",
		parameters: map[string]any{"query": keywords},
	}, iteration, emit, log)
}

func (o *Orchestrator) rewriteQuery(ctx context.Context, question, query string) string {
	resp, err := o.completer.Complete(ctx, llm.Request{
		System: rewriteSystem,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\nFailed query: %s", question, query),
		}},
	})
	if err != nil {
		return ""
	}
	text := strings.Trim(strings.TrimSpace(resp.Text), `"'`)
	if after, ok := strings.CutPrefix(text, finalAnswerPrefix); ok {
		text = strings.TrimSpace(after)
	}
	if text == "" || strings.HasPrefix(text, toolCallPrefix) || len(text) > 200 {
		return ""
	}
	return text
}

// synthesize is the one post-cap completion pass. It returns the text and
// whether chunks already reached the sink; a model that still answers with
// tool calls yields empty text and the caller falls back locally.
func (o *Orchestrator) synthesize(ctx context.Context, t *turn, stream bool, emit func(Event)) (string, bool) {
	req := llm.Request{
		System:   synthesisSystem,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: synthesisPrompt(t, o.opts.ContextBudget)}},
	}
	var streamed bool
	if stream && o.opts.ToolMode == ModeNative {
		req.OnChunk = func(chunk string) {
			streamed = true
			emit(Event{Type: EventResponseChunk, Chunk: chunk})
		}
	}
	resp, err := o.completer.Complete(ctx, req)
	if err != nil {
		o.logger.Warn("agent: synthesis failed", slog.String("error", err.Error()))
		return "", false
	}
	text := strings.TrimSpace(resp.Text)
	if o.opts.ToolMode == ModeText {
		d := parseResponse(text)
		if !d.finished {
			return "", false
		}
		text = d.content
	} else if len(resp.ToolCalls) > 0 && text == "" {
		return "", false
	}
	return text, streamed
}

// emitAnswer assembles the terminal answer, guaranteeing non-empty text, and
// closes out the response event bracket. started marks a response_start
// already sent; streamed marks text whose chunks already flowed.
func (o *Orchestrator) emitAnswer(t *turn, iterations int, text string, started, streamed bool, emit func(Event)) *Answer {
	if strings.TrimSpace(text) == "" {
		text = o.localAnswer(t)
		streamed = false
	}
	ans := &Answer{
		TurnID:     t.id,
		Text:       text,
		Iterations: iterations,
		ToolTrace:  trace(t.steps),
	}
	if !started {
		emit(Event{Type: EventResponseStart, Iteration: iterations})
	}
	if !streamed {
		emit(Event{Type: EventResponseChunk, Chunk: text})
	}
	emit(Event{Type: EventResponseEnd, Answer: ans})
	return ans
}

// localAnswer builds a terminal answer without the model, from whatever the
// call log holds. Used when the turn is canceled, completion fails after
// evidence was gathered, or the synthesis pass yields nothing.
func (o *Orchestrator) localAnswer(t *turn) string {
	if len(t.steps) == 0 {
		return "I could not finish reasoning about this question, and no searches completed before stopping."
	}
	var b strings.Builder
	b.WriteString("I could not finish reasoning about this question. Evidence gathered before stopping:\n")
	for _, s := range t.steps {
		if s.err != "" {
			fmt.Fprintf(&b, "- %s failed: %s\n", s.tool, s.err)
			continue
		}
		fmt.Fprintf(&b, "- %s found %d result(s)\n", s.tool, s.result.Found)
		for i, r := range s.result.Results {
			if i == 3 {
				break
			}
			path, _ := r["path"].(string)
			if path == "" {
				continue
			}
			if title, _ := r["title"].(string); title != "" {
				fmt.Fprintf(&b, "  - %s (%s)\n", path, title)
			} else {
				fmt.Fprintf(&b, "  - %s\n", path)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (o *Orchestrator) planningRequest(t *turn, iteration int) llm.Request {
	req := llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: o.planningPrompt(t, iteration)}},
	}
	if o.opts.ToolMode == ModeText {
		req.System = textSystemPrompt(o.registry)
		return req
	}
	req.System = nativeSystem
	req.Tools = o.toolSchemas()
	return req
}

func (o *Orchestrator) toolSchemas() []llm.ToolSchema {
	list := o.registry.List()
	out := make([]llm.ToolSchema, len(list))
	for i, t := range list {
		out[i] = llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		}
	}
	return out
}

func trace(steps []step) []ToolCall {
	out := make([]ToolCall, len(steps))
	for i, s := range steps {
		tc := ToolCall{Tool: s.tool, Args: s.args, Error: s.err}
		if s.result != nil {
			tc.Found = s.result.Found
			if tc.Error == "" {
				tc.Error = s.result.Error
			}
		}
		out[i] = tc
	}
	return out
}

func stringParam(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
