// Package progress threads a user-facing progress callback through a
// context. The run loop and tool execution emit events for streamed text and
// tool activity; callers that don't install a callback pay nothing.
package progress

import (
	stdctx "context"
)

// Kind classifies a progress event.
type Kind string

const (
	KindText          Kind = "text"
	KindToolStarted   Kind = "tool_started"
	KindToolCompleted Kind = "tool_completed"
	KindToolResult    Kind = "tool_result"
)

// Event is one unit of user-visible progress.
type Event struct {
	Kind     Kind
	Text     string
	ToolName string
	CallID   string
	IsError  bool
}

// Callback receives progress events. Callbacks run synchronously on the run
// loop goroutine and should return quickly.
type Callback func(Event)

// callbackKey is in its own type to keep the context value private.
type callbackKey struct{}

// WithCallback installs a progress callback on the context.
func WithCallback(ctx stdctx.Context, cb Callback) stdctx.Context {
	return stdctx.WithValue(ctx, callbackKey{}, cb)
}

// Emit delivers an event to the context's callback, if one is installed.
func Emit(ctx stdctx.Context, ev Event) {
	if cb, ok := ctx.Value(callbackKey{}).(Callback); ok && cb != nil {
		cb(ev)
	}
}

// Text emits a streamed text delta.
func Text(ctx stdctx.Context, text string) {
	if text == "" {
		return
	}
	Emit(ctx, Event{Kind: KindText, Text: text})
}

// ToolStarted emits a tool execution start event.
func ToolStarted(ctx stdctx.Context, toolName, callID string) {
	Emit(ctx, Event{Kind: KindToolStarted, ToolName: toolName, CallID: callID})
}

// ToolCompleted emits a tool execution completion event.
func ToolCompleted(ctx stdctx.Context, toolName, callID string, isError bool) {
	Emit(ctx, Event{Kind: KindToolCompleted, ToolName: toolName, CallID: callID, IsError: isError})
}

// ToolResult emits a tool's result text for tools that want it shown.
func ToolResult(ctx stdctx.Context, toolName, text string) {
	Emit(ctx, Event{Kind: KindToolResult, ToolName: toolName, Text: text})
}
