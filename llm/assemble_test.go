package llm

import (
	"testing"
)

func TestAssembler_ContentAndToolCalls(t *testing.T) {
	a := NewAssembler()

	a.Add(&StreamEvent{Type: StreamEventTypeStart})
	a.Add(&StreamEvent{Type: StreamEventTypeContentDelta, Text: "Hello "})
	a.Add(&StreamEvent{Type: StreamEventTypeContentDelta, Text: "world"})
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 0, ID: "call-1", Name: "get_weather",
	}})
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 0, Arguments: `{"city":`,
	}})
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 0, Arguments: `"Paris"}`,
	}})
	a.Add(&StreamEvent{Type: StreamEventTypeStop, Usage: &Usage{InputTokens: 10, OutputTokens: 5}, StopReason: "tool_calls"})

	resp := a.Response()
	if resp.Content != "Hello world" {
		t.Errorf("Expected content 'Hello world', got %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call-1" || call.Name != "get_weather" {
		t.Errorf("Unexpected call identity: %+v", call)
	}
	if call.Arguments != `{"city":"Paris"}` {
		t.Errorf("Expected reassembled arguments, got %q", call.Arguments)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 10 {
		t.Errorf("Expected usage from stop event, got %+v", resp.Usage)
	}
	if resp.StopReason != "tool_calls" {
		t.Errorf("Expected stop reason 'tool_calls', got %q", resp.StopReason)
	}
}

func TestAssembler_OutOfOrderFragments(t *testing.T) {
	a := NewAssembler()

	// Index 1 arrives before index 0, and its argument fragments interleave
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 1, ID: "call-b", Name: "second", Arguments: `{"b"`,
	}})
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 0, ID: "call-a", Name: "first", Arguments: `{}`,
	}})
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 1, Arguments: `:2}`,
	}})

	resp := a.Response()
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "first" || resp.ToolCalls[1].Name != "second" {
		t.Errorf("Expected calls ordered by index, got [%s %s]",
			resp.ToolCalls[0].Name, resp.ToolCalls[1].Name)
	}
	if resp.ToolCalls[1].Arguments != `{"b":2}` {
		t.Errorf("Expected interleaved fragments reassembled, got %q", resp.ToolCalls[1].Arguments)
	}
}

func TestAssembler_SynthesizesMissingIDs(t *testing.T) {
	a := NewAssembler()
	a.Add(&StreamEvent{Type: StreamEventTypeToolCall, ToolCall: &ToolCallDelta{
		Index: 0, Name: "anon",
	}})

	resp := a.Response()
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID == "" {
		t.Error("Expected a synthesized ID for a call without one")
	}
	if resp.ToolCalls[0].Arguments != "{}" {
		t.Errorf("Expected empty arguments normalized to {}, got %q", resp.ToolCalls[0].Arguments)
	}
}

func TestAssembler_FirstTokenLatency(t *testing.T) {
	a := NewAssembler()
	if a.FirstTokenLatency() != 0 {
		t.Error("Expected zero latency before any token")
	}
	a.Add(&StreamEvent{Type: StreamEventTypeContentDelta, Text: "x"})
	if a.FirstTokenLatency() == 0 {
		t.Error("Expected latency recorded after first token")
	}
}
