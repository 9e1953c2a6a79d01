package llm

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	// DefaultToolCallOpenTag and DefaultToolCallCloseTag delimit tool-call
	// regions in text for models trained on the Hermes-style convention.
	DefaultToolCallOpenTag  = "<tool_call>"
	DefaultToolCallCloseTag = "</tool_call>"
)

// TagExtractor extracts tool calls embedded in assistant text as delimited
// JSON regions. Models using this convention emit something like:
//
//	<tool_call>{"name": "get_weather", "arguments": {"city": "Paris"}}</tool_call>
//
// possibly mixed with visible prose and possibly with the final closing tag
// cut off by a provider stop sequence.
type TagExtractor struct {
	Open   string
	Close  string
	logger zerolog.Logger
}

// NewTagExtractor creates a TagExtractor with the default delimiters.
func NewTagExtractor(logger zerolog.Logger) *TagExtractor {
	return &TagExtractor{
		Open:   DefaultToolCallOpenTag,
		Close:  DefaultToolCallCloseTag,
		logger: logger.With().Str("component", "tag_extractor").Logger(),
	}
}

// taggedCall is the JSON payload inside one delimited region.
type taggedCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Extract implements Extractor. Structured tool calls already present on the
// response are kept; calls parsed from the text are appended after them.
// A region whose payload does not parse is skipped with a warning rather than
// failing the whole response.
func (e *TagExtractor) Extract(resp *Response) ([]ToolCall, string) {
	calls := append([]ToolCall(nil), resp.ToolCalls...)

	content := resp.Content
	// When the provider uses the closing tag as a stop sequence, the final
	// region arrives without it. Restore balance before splitting.
	if strings.Count(content, e.Open) > strings.Count(content, e.Close) {
		content += e.Close
	}

	segments := strings.Split(content, e.Close)
	// Every segment except the last one originally ended with a closing tag.
	for _, segment := range segments[:len(segments)-1] {
		start := strings.Index(segment, e.Open)
		if start < 0 {
			continue
		}
		payload := strings.TrimSpace(segment[start+len(e.Open):])

		var call taggedCall
		if err := json.Unmarshal([]byte(payload), &call); err != nil || call.Name == "" {
			e.logger.Warn().
				Str("payload", payload).
				Msg("skipping unparseable tool call region")
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

	return calls, e.StripToolCalls(resp.Content)
}

// StripToolCalls removes every delimited tool-call region from content and
// trims surrounding whitespace. An unterminated region is removed through the
// end of the string. Applying it twice yields the same result.
func (e *TagExtractor) StripToolCalls(content string) string {
	for {
		start := strings.Index(content, e.Open)
		if start < 0 {
			break
		}
		rest := content[start:]
		end := strings.Index(rest, e.Close)
		if end < 0 {
			content = content[:start]
			break
		}
		content = content[:start] + rest[end+len(e.Close):]
	}
	return strings.TrimSpace(content)
}

// StopSequences returns provider stop sequences that terminate generation at
// the end of a tool-call region.
func (e *TagExtractor) StopSequences() []string {
	return []string{e.Close}
}

// TagFilter suppresses delimited tool-call regions from a visible text
// stream. It operates on whole chunks: once a chunk opens a region, the
// remainder of that chunk and every following chunk is swallowed until the
// chunk containing the matching close tag has been consumed. Nested opens
// are tracked with a depth counter.
type TagFilter struct {
	open  string
	close string
	depth int
}

// NewTagFilter creates a TagFilter for the given delimiters. Empty
// delimiters select the defaults.
func NewTagFilter(open, close string) *TagFilter {
	if open == "" {
		open = DefaultToolCallOpenTag
	}
	if close == "" {
		close = DefaultToolCallCloseTag
	}
	return &TagFilter{open: open, close: close}
}

// Feed consumes one stream chunk and returns the portion that should be
// visible. The chunk that closes a region produces no visible output even if
// text follows the closing tag within it.
func (f *TagFilter) Feed(chunk string) string {
	opens := strings.Count(chunk, f.open)
	closes := strings.Count(chunk, f.close)

	if f.depth == 0 {
		if opens == 0 {
			return chunk
		}
		visible := chunk[:strings.Index(chunk, f.open)]
		f.depth = lo.Max([]int{opens - closes, 0})
		return visible
	}

	f.depth = lo.Max([]int{f.depth + opens - closes, 0})
	return ""
}

// Reset clears the filter state for reuse across responses.
func (f *TagFilter) Reset() {
	f.depth = 0
}
