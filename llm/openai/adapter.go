package openai

import (
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/aschepis/agentloop/llm"
)

// ToChatMessages converts conversation messages to Chat Completions messages.
// The mapping is direct: OpenAI's wire format already uses a flat message
// with tool_calls on the assistant side and role "tool" results keyed by
// tool_call_id.
func ToChatMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})

		case llm.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})

		case llm.RoleAssistant:
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			m.ToolCalls = lo.Map(msg.ToolCalls, func(call llm.ToolCall, _ int) openai.ToolCall {
				return openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				}
			})
			out = append(out, m)

		case llm.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
				Name:       msg.ToolName,
			})
		}
	}
	return out
}

// ToTools converts tool specs to Chat Completions tool definitions.
func ToTools(specs []llm.ToolSpec) []openai.Tool {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) openai.Tool {
		params := map[string]any{
			"type":       "object",
			"properties": spec.Schema.Properties,
		}
		if len(spec.Schema.Required) > 0 {
			params["required"] = spec.Schema.Required
		}
		for k, v := range spec.Schema.ExtraFields {
			params[k] = v
		}
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Strict:      spec.Strict,
				Parameters:  params,
			},
		}
	})
}

// FromChoice converts a completion choice plus usage to an llm.Response.
func FromChoice(choice openai.ChatCompletionChoice, usage openai.Usage) *llm.Response {
	resp := &llm.Response{
		Content: choice.Message.Content,
		Usage: &llm.Usage{
			InputTokens:  int64(usage.PromptTokens),
			OutputTokens: int64(usage.CompletionTokens),
		},
		StopReason: stopReason(choice.FinishReason),
	}
	for _, call := range choice.Message.ToolCalls {
		args := call.Function.Arguments
		if args == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return resp
}

func stopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonToolCalls:
		return "tool_calls"
	default:
		return "stop"
	}
}
