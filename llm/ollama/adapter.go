package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/aschepis/agentloop/llm"
)

// ToMessages converts conversation messages to Ollama chat messages.
// Assistant tool calls carry decoded argument maps; Ollama's API takes
// structured arguments, not JSON strings.
func ToMessages(msgs []llm.Message) ([]api.Message, error) {
	out := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, api.Message{Role: "system", Content: msg.Content})

		case llm.RoleUser:
			out = append(out, api.Message{Role: "user", Content: msg.Content})

		case llm.RoleAssistant:
			m := api.Message{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				args := api.ToolCallFunctionArguments{}
				if call.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode arguments for tool %s: %w", call.Name, err)
					}
				}
				m.ToolCalls = append(m.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, m)

		case llm.RoleTool:
			out = append(out, api.Message{Role: "tool", Content: msg.Content})
		}
	}
	return out, nil
}

// ToTools converts tool specs to Ollama tool definitions. The parameter
// schema goes through a JSON round trip into the API's typed schema struct.
func ToTools(specs []llm.ToolSpec) ([]api.Tool, error) {
	tools := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		schema := map[string]any{
			"type":       "object",
			"properties": spec.Schema.Properties,
		}
		if len(spec.Schema.Required) > 0 {
			schema["required"] = spec.Schema.Required
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %s: %w", spec.Name, err)
		}

		fn := api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if err := json.Unmarshal(raw, &fn.Parameters); err != nil {
			return nil, fmt.Errorf("convert schema for tool %s: %w", spec.Name, err)
		}
		tools = append(tools, api.Tool{Type: "function", Function: fn})
	}
	return tools, nil
}

// FromToolCalls converts Ollama tool calls to the neutral shape. Ollama does
// not assign call IDs, so they are synthesized here; result correlation
// depends on every call having one.
func FromToolCalls(calls []api.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, 0, len(calls))
	for _, call := range calls {
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil || len(args) == 0 {
			args = []byte("{}")
		}
		out = append(out, llm.ToolCall{
			ID:        "call_" + uuid.New().String(),
			Name:      call.Function.Name,
			Arguments: string(args),
		})
	}
	return out
}
