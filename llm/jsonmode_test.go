package llm

import (
	"testing"
)

func TestJSONModeExtractor_Extract(t *testing.T) {
	e := JSONModeExtractor{}

	resp := &Response{
		Content: `{"tool_calls": [{"name": "get_weather", "arguments": {"city": "Paris"}}, {"name": "get_time", "arguments": {}}]}`,
	}

	calls, visible := e.Extract(resp)
	if len(calls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].Name != "get_weather" || calls[1].Name != "get_time" {
		t.Errorf("Unexpected call names: [%s %s]", calls[0].Name, calls[1].Name)
	}
	if calls[0].ID == "" || calls[1].ID == "" {
		t.Error("Expected synthesized call IDs")
	}
	if visible != "" {
		t.Errorf("Expected empty visible content when the whole message encoded calls, got %q", visible)
	}
}

func TestJSONModeExtractor_PlainTextFallback(t *testing.T) {
	e := JSONModeExtractor{}

	resp := &Response{Content: "Just a normal prose answer."}
	calls, visible := e.Extract(resp)
	if len(calls) != 0 {
		t.Errorf("Expected no calls from prose, got %d", len(calls))
	}
	if visible != resp.Content {
		t.Errorf("Expected content passed through, got %q", visible)
	}
}

func TestJSONModeExtractor_JSONWithoutToolCalls(t *testing.T) {
	e := JSONModeExtractor{}

	resp := &Response{Content: `{"answer": 42}`}
	calls, visible := e.Extract(resp)
	if len(calls) != 0 {
		t.Errorf("Expected no calls, got %d", len(calls))
	}
	if visible != resp.Content {
		t.Errorf("Expected content passed through, got %q", visible)
	}
}

func TestJSONModeExtractor_KeepsNativeCalls(t *testing.T) {
	e := JSONModeExtractor{}

	resp := &Response{
		Content:   "text",
		ToolCalls: []ToolCall{{ID: "native-1", Name: "n", Arguments: "{}"}},
	}
	calls, visible := e.Extract(resp)
	if len(calls) != 1 || calls[0].ID != "native-1" {
		t.Errorf("Expected native calls passed through, got %+v", calls)
	}
	if visible != "text" {
		t.Errorf("Expected content unchanged, got %q", visible)
	}
}
