package llm

import (
	"encoding/json"
	"time"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolChoice controls whether the model may request tool calls.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// ToolCall is the provider-neutral shape of a model-requested tool invocation.
// Arguments is the raw JSON-encoded argument object exactly as the model
// emitted it; decoding (and repair of near-JSON) happens in the runner.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message represents a single turn in a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`

	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName correlate a tool-result message back to the
	// assistant tool call that produced it. ToolCallError marks failed results.
	ToolCallID    string `json:"tool_call_id,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
	ToolCallError bool   `json:"tool_call_error,omitempty"`

	// StopAfterToolCall short-circuits the tool loop: the run returns after
	// this message without requesting another model response.
	StopAfterToolCall bool `json:"-"`

	// Metrics holds per-message timing and token bookkeeping. Optional.
	Metrics *MessageMetrics `json:"-"`
}

// MessageMetrics holds timing and token bookkeeping for one message.
type MessageMetrics struct {
	InputTokens      int64
	OutputTokens     int64
	Duration         time.Duration
	TimeToFirstToken time.Duration
}

// NewTextMessage creates a plain text message with the given role.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: text}
}

// NewToolCallMessage creates an assistant message requesting the given tool
// calls. Content may be empty when the model emitted no visible text.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage creates a tool-role result message correlated to a call.
func NewToolResultMessage(callID, toolName, content string, isError bool) Message {
	return Message{
		Role:          RoleTool,
		Content:       content,
		ToolCallID:    callID,
		ToolName:      toolName,
		ToolCallError: isError,
	}
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToolSpec represents a tool definition that can be provided to an LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      ToolSchema

	// Strict requests provider-side strict schema validation. Providers
	// without the feature ignore it.
	Strict bool
}

// ToolSchema represents the JSON schema for a tool's input parameters.
type ToolSchema struct {
	Type        string
	Properties  map[string]interface{}
	Required    []string
	ExtraFields map[string]interface{} // For any additional schema fields
}

// Request represents a complete LLM API request.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	Tools       []ToolSpec
	ToolChoice  ToolChoice
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a complete LLM API response.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      *Usage
	StopReason string
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// ToolCallDelta is a partial tool-call fragment from a streaming response.
// Index identifies which call the fragment belongs to; a provider may split
// one call's ID, Name, and Arguments across many fragments sharing an index,
// and fragments for different indexes may interleave in any order.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamEventType represents the type of streaming event.
type StreamEventType string

const (
	StreamEventTypeStart        StreamEventType = "start"
	StreamEventTypeContentDelta StreamEventType = "content_delta"
	StreamEventTypeToolCall     StreamEventType = "tool_call_delta"
	StreamEventTypeStop         StreamEventType = "stop"
)

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	Type       StreamEventType
	Text       string         // For content deltas
	ToolCall   *ToolCallDelta // For tool-call fragments
	Usage      *Usage
	StopReason string
	Done       bool
}
