package agent

import "context"

// Event types, in the order a turn emits them. Every tool execution yields a
// tool_start/tool_result pair; the terminal answer is bracketed by
// response_start and response_end with zero or more chunks between.
const (
	EventToolStart     = "tool_start"
	EventToolResult    = "tool_result"
	EventResponseStart = "response_start"
	EventResponseChunk = "response_chunk"
	EventResponseEnd   = "response_end"
)

// Event is one increment of a streamed turn.
type Event struct {
	Type      string         `json:"type"`
	TurnID    string         `json:"turn_id"`
	Iteration int            `json:"iteration,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Found     int            `json:"found,omitempty"`
	Error     string         `json:"error,omitempty"`
	Chunk     string         `json:"chunk,omitempty"`
	Answer    *Answer        `json:"answer,omitempty"`
}

// eventSink receives events as the loop progresses. A nil sink is valid and
// turns the streaming variant back into the plain synchronous call.
type eventSink func(Event)

// AskStream runs one turn and emits its progress as events. The channel is
// closed when the turn reaches a terminal state; a fatal planning error
// surfaces as a response_end event carrying the error.
func (o *Orchestrator) AskStream(ctx context.Context, question string) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		sink := func(e Event) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		}
		o.run(ctx, question, sink)
	}()
	return ch
}
