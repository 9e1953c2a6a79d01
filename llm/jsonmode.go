package llm

import (
	"encoding/json"
	"strings"
)

// JSONModeExtractor handles models that, when forced into JSON output mode,
// emit the entire assistant message as one JSON object carrying a
// "tool_calls" list:
//
//	{"tool_calls": [{"name": "get_weather", "arguments": {"city": "Paris"}}]}
//
// Content that fails to parse this way is treated as plain text. There is no
// warning for that case: in JSON mode ordinary prose answers are expected and
// are not an error.
type JSONModeExtractor struct{}

type jsonModePayload struct {
	ToolCalls []taggedCall `json:"tool_calls"`
}

// Extract implements Extractor. When tool calls are extracted the visible
// content is empty, since the whole message was the encoding.
func (JSONModeExtractor) Extract(resp *Response) ([]ToolCall, string) {
	if len(resp.ToolCalls) > 0 {
		return resp.ToolCalls, resp.Content
	}

	var payload jsonModePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &payload); err != nil {
		return nil, resp.Content
	}
	if len(payload.ToolCalls) == 0 {
		return nil, resp.Content
	}

	calls := make([]ToolCall, 0, len(payload.ToolCalls))
	for _, call := range payload.ToolCalls {
		if call.Name == "" {
			continue
		}
		args := string(call.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, ToolCall{
			ID:        newCallID(),
			Name:      call.Name,
			Arguments: args,
		})
	}
	if len(calls) == 0 {
		return nil, resp.Content
	}
	return calls, ""
}
