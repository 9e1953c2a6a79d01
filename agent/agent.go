package agent

import (
	"context"

	"github.com/aschepis/agentloop/llm"
)

// DefaultToolCallLimit caps how many tool calls a single run may execute
// before the model is forced to answer without tools.
const DefaultToolCallLimit = 20

// Agent holds the per-agent settings a run needs. It carries no run state;
// each run gets a fresh RunContext.
type Agent struct {
	ID           string
	Name         string
	SystemPrompt string
	Model        string
	MaxTokens    int64
	Temperature  *float64

	// ToolCallLimit overrides DefaultToolCallLimit when positive.
	ToolCallLimit int

	// ToolPatterns selects which registered tools this agent sees, as
	// regular expressions over tool names. Empty means all tools.
	ToolPatterns []string
}

func (a *Agent) callLimit() int {
	if a.ToolCallLimit > 0 {
		return a.ToolCallLimit
	}
	return DefaultToolCallLimit
}

// MessagePersister persists conversation messages as they are produced.
// All methods are best-effort from the loop's perspective; persistence
// failures are logged, not fatal.
type MessagePersister interface {
	AppendUserMessage(ctx context.Context, agentID, threadID, content string) error
	AppendAssistantMessage(ctx context.Context, agentID, threadID, content string) error
	AppendToolCall(ctx context.Context, agentID, threadID string, call llm.ToolCall) error
	AppendToolResult(ctx context.Context, agentID, threadID string, result llm.Message) error
}
