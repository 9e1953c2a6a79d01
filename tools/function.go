package tools

import (
	"context"

	"github.com/aschepis/agentloop/llm"
)

// CallContext carries run-scoped values into a tool entrypoint. It is
// injected by the runner, never supplied by the model.
type CallContext struct {
	// AgentID identifies the agent on whose behalf the tool runs.
	AgentID string

	// Call is the in-flight invocation, useful for introspecting the call ID
	// or raw arguments from inside the entrypoint.
	Call *FunctionCall
}

// Entrypoint is the signature every tool implementation satisfies. args holds
// the decoded, sanitized model-supplied arguments.
type Entrypoint func(ctx context.Context, call *CallContext, args map[string]any) (any, error)

// Hook runs before or after an entrypoint. A pre-hook error aborts the call;
// a post-hook error replaces a successful result with a failure.
type Hook func(ctx context.Context, call *CallContext) error

// Function is an executable tool: metadata the model sees plus the behavior
// flags and entrypoint the runner uses.
type Function struct {
	Name        string
	Description string
	Parameters  llm.ToolSchema

	// Strict requests provider-side strict schema validation where supported.
	Strict bool

	// SanitizeArguments enables scalar string cleanup on decoded arguments.
	// Most tools want it; tools taking free-form prose can opt out.
	SanitizeArguments bool

	// ShowResult surfaces the tool's result to the user as progress output in
	// addition to feeding it back to the model.
	ShowResult bool

	// StopAfterToolCall ends the run after this tool's result message instead
	// of requesting another model response.
	StopAfterToolCall bool

	PreHook  Hook
	PostHook Hook

	Entrypoint Entrypoint
}

// Spec returns the provider-facing tool definition.
func (f *Function) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        f.Name,
		Description: f.Description,
		Schema:      f.Parameters,
		Strict:      f.Strict,
	}
}

// Toolkit bundles related functions for registration as a unit.
type Toolkit interface {
	Name() string
	Functions() []*Function
}

// Redirect is a control-flow result a tool entrypoint may return instead of
// data. The runner folds its messages into the conversation; when Stop is set
// the run ends after the tool's result message.
type Redirect struct {
	// UserMessage is appended as a user-role message after the tool result.
	UserMessage string

	// AgentMessage is appended as an assistant-role message.
	AgentMessage string

	// ExtraMessages are appended verbatim after the above.
	ExtraMessages []llm.Message

	// Stop marks the tool result message terminal.
	Stop bool
}
