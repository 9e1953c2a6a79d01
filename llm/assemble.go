package llm

import (
	"sort"
	"strings"
	"time"
)

// Assembler accumulates stream events into a complete Response. Tool-call
// fragments are keyed by their index into an arena of partial builders, so
// interleaved and out-of-order fragment arrival assembles the same response
// as a non-streaming request would have returned.
type Assembler struct {
	content    strings.Builder
	calls      map[int]*toolCallBuilder
	usage      *Usage
	stopReason string

	started    time.Time
	firstToken time.Duration
}

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// NewAssembler creates an Assembler. The first-token clock starts now.
func NewAssembler() *Assembler {
	return &Assembler{
		calls:   make(map[int]*toolCallBuilder),
		started: time.Now(),
	}
}

// Add consumes one stream event.
func (a *Assembler) Add(ev *StreamEvent) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case StreamEventTypeContentDelta:
		if ev.Text != "" && a.firstToken == 0 {
			a.firstToken = time.Since(a.started)
		}
		a.content.WriteString(ev.Text)
	case StreamEventTypeToolCall:
		if ev.ToolCall == nil {
			return
		}
		if a.firstToken == 0 {
			a.firstToken = time.Since(a.started)
		}
		b, ok := a.calls[ev.ToolCall.Index]
		if !ok {
			b = &toolCallBuilder{}
			a.calls[ev.ToolCall.Index] = b
		}
		if ev.ToolCall.ID != "" {
			b.id = ev.ToolCall.ID
		}
		if ev.ToolCall.Name != "" {
			b.name = ev.ToolCall.Name
		}
		b.args.WriteString(ev.ToolCall.Arguments)
	case StreamEventTypeStop:
		if ev.Usage != nil {
			a.usage = ev.Usage
		}
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}
	}
}

// Response finalizes the accumulated state. Tool calls are ordered by index
// regardless of fragment arrival order; calls missing an ID get one
// synthesized so result correlation still works.
func (a *Assembler) Response() *Response {
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		b := a.calls[idx]
		id := b.id
		if id == "" {
			id = newCallID()
		}
		args := b.args.String()
		if args == "" {
			args = "{}"
		}
		calls = append(calls, ToolCall{ID: id, Name: b.name, Arguments: args})
	}

	return &Response{
		Content:    a.content.String(),
		ToolCalls:  calls,
		Usage:      a.usage,
		StopReason: a.stopReason,
	}
}

// FirstTokenLatency returns the time from assembler creation to the first
// content or tool-call fragment, or zero if nothing arrived yet.
func (a *Assembler) FirstTokenLatency() time.Duration {
	return a.firstToken
}
