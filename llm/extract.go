package llm

import (
	"github.com/google/uuid"
)

// Extractor pulls tool calls out of a completed response. Implementations
// return the extracted calls plus the content that should remain visible to
// the user once any tool-call encoding has been removed.
type Extractor interface {
	Extract(resp *Response) ([]ToolCall, string)
}

// NativeExtractor handles providers that return tool calls as structured
// response fields. It is the default strategy.
type NativeExtractor struct{}

// Extract implements Extractor.
func (NativeExtractor) Extract(resp *Response) ([]ToolCall, string) {
	return resp.ToolCalls, resp.Content
}

// ExtractorFor returns the extraction strategy for a client. Clients that
// implement ExtractorProvider choose their own; everything else is native.
func ExtractorFor(client Client) Extractor {
	if p, ok := client.(ExtractorProvider); ok {
		if e := p.Extractor(); e != nil {
			return e
		}
	}
	return NativeExtractor{}
}

// newCallID synthesizes a call ID for providers and strategies that do not
// supply one. Result correlation requires every call to carry a unique ID.
func newCallID() string {
	return "call_" + uuid.New().String()
}
