package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aschepis/agentloop/progress"
)

// FunctionCall is one resolved invocation of a Function. Execute runs at most
// once; afterwards exactly one of Result or Error is populated (a Redirect
// counts as a result).
type FunctionCall struct {
	Function  *Function
	CallID    string
	Arguments map[string]any

	Result   any
	Error    string
	Redirect *Redirect

	executed bool
}

// NewCall creates a pending invocation.
func NewCall(f *Function, callID string, args map[string]any) *FunctionCall {
	return &FunctionCall{
		Function:  f,
		CallID:    callID,
		Arguments: args,
	}
}

// Fail marks the call failed without executing it. Used for argument decode
// failures where the error must still flow back to the model as a result.
func (c *FunctionCall) Fail(message string) {
	c.executed = true
	c.Error = message
}

// Executed reports whether the call has run (or been failed).
func (c *FunctionCall) Executed() bool {
	return c.executed
}

// Succeeded reports whether the call ran without error.
func (c *FunctionCall) Succeeded() bool {
	return c.executed && c.Error == ""
}

// Execute runs the function. A second call is a no-op. Panics and errors from
// the entrypoint and hooks are captured into Error rather than propagated;
// tool failures are recoverable by the model, not fatal to the run.
func (c *FunctionCall) Execute(ctx context.Context, agentID string) {
	if c.executed {
		return
	}
	c.executed = true

	callCtx := &CallContext{AgentID: agentID, Call: c}
	progress.ToolStarted(ctx, c.Function.Name, c.CallID)
	defer func() {
		progress.ToolCompleted(ctx, c.Function.Name, c.CallID, c.Error != "")
	}()
	// Registered after the completion event so the recovery runs first and the
	// event sees the captured error.
	defer func() {
		if r := recover(); r != nil {
			c.Error = fmt.Sprintf("tool %s panicked: %v", c.Function.Name, r)
		}
	}()

	if c.Function.PreHook != nil {
		if err := c.Function.PreHook(ctx, callCtx); err != nil {
			c.Error = err.Error()
			return
		}
	}

	result, err := c.Function.Entrypoint(ctx, callCtx, c.Arguments)
	if err != nil {
		c.Error = err.Error()
		return
	}

	if rd, ok := result.(*Redirect); ok {
		c.Redirect = rd
		c.Result = rd.AgentMessage
	} else {
		c.Result = drain(result)
	}

	if c.Function.PostHook != nil {
		if err := c.Function.PostHook(ctx, callCtx); err != nil {
			c.Error = err.Error()
			c.Result = nil
			return
		}
	}

	if c.Function.ShowResult {
		progress.ToolResult(ctx, c.Function.Name, c.ResultContent())
	}
}

// drain collapses lazily-produced results into a single value so the result
// message sees complete output.
func drain(result any) any {
	switch v := result.(type) {
	case <-chan string:
		var parts []string
		for s := range v {
			parts = append(parts, s)
		}
		return strings.Join(parts, "")
	case chan string:
		var parts []string
		for s := range v {
			parts = append(parts, s)
		}
		return strings.Join(parts, "")
	case []string:
		return strings.Join(v, "\n")
	default:
		return v
	}
}

// ResultContent serializes the call's outcome for the tool result message.
// Errors pass through as text; string results stay as-is; everything else is
// JSON-encoded.
func (c *FunctionCall) ResultContent() string {
	if c.Error != "" {
		return c.Error
	}
	switch v := c.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
