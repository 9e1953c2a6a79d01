package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aschepis/agentloop/llm"
)

func TestToTools(t *testing.T) {
	specs := []llm.ToolSpec{
		{
			Name:        "get_weather",
			Description: "Current weather for a city",
			Strict:      true,
			Schema: llm.ToolSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"city": map[string]interface{}{"type": "string"},
				},
				Required: []string{"city"},
			},
		},
		{
			Name:   "ping",
			Schema: llm.ToolSchema{Type: "object"},
		},
	}

	tools := ToTools(specs)
	if len(tools) != 2 {
		t.Fatalf("Expected 2 tools, got %d", len(tools))
	}

	weather := tools[0].Function
	if weather.Name != "get_weather" {
		t.Errorf("Expected name get_weather, got %q", weather.Name)
	}
	if !weather.Strict {
		t.Error("Expected strict validation requested for get_weather")
	}
	params, ok := weather.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("Expected parameter map, got %T", weather.Parameters)
	}
	if required, _ := params["required"].([]string); len(required) != 1 || required[0] != "city" {
		t.Errorf("Expected required [city], got %v", params["required"])
	}

	if tools[1].Function.Strict {
		t.Error("Expected strict off for tools that did not ask for it")
	}
}

func TestFromChoice_NormalizesEmptyArguments(t *testing.T) {
	choice := openai.ChatCompletionChoice{
		FinishReason: openai.FinishReasonToolCalls,
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{
				{
					ID:       "call-1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "ping"},
				},
			},
		},
	}

	resp := FromChoice(choice, openai.Usage{PromptTokens: 5, CompletionTokens: 2})
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Arguments != "{}" {
		t.Errorf("Expected empty arguments normalized to {}, got %q", resp.ToolCalls[0].Arguments)
	}
	if resp.StopReason != "tool_calls" {
		t.Errorf("Expected stop reason tool_calls, got %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
}
