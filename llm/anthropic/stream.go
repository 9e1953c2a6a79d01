package anthropic

import (
	"context"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

// stream adapts the SDK's SSE stream to llm.Stream. Events are read on a
// background goroutine into a buffer; Next blocks on a condition variable
// until one is available.
type stream struct {
	ctx     context.Context
	inner   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
	logger  zerolog.Logger
}

func newStream(ctx context.Context, inner *ssestream.Stream[anthropic.MessageStreamEventUnion], logger zerolog.Logger) *stream {
	s := &stream{
		ctx:     ctx,
		inner:   inner,
		current: -1,
		logger:  logger,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Next implements llm.Stream.
func (s *stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		go s.consume()
	}

	s.current++
	for s.current >= len(s.events) && !s.done && s.err == nil {
		s.cond.Wait()
	}
	if s.err != nil {
		return false
	}
	return s.current < len(s.events)
}

// Event implements llm.Stream.
func (s *stream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err implements llm.Stream.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements llm.Stream.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.cond.Broadcast()
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}

func (s *stream) emit(ev *llm.StreamEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// consume reads SDK events and translates them. Anthropic scopes tool-call
// fragments by content block index: a content_block_start carries the call's
// ID and name, subsequent input_json deltas carry argument fragments for the
// same index.
func (s *stream) consume() {
	s.emit(&llm.StreamEvent{Type: llm.StreamEventTypeStart})

	var usage *llm.Usage
	var stopReason string

	for s.inner.Next() {
		event := s.inner.Current()

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				s.emit(&llm.StreamEvent{
					Type: llm.StreamEventTypeToolCall,
					ToolCall: &llm.ToolCallDelta{
						Index: int(evt.Index),
						ID:    block.ID,
						Name:  block.Name,
					},
				})
			}

		case anthropic.ContentBlockDeltaEvent:
			switch d := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if d.Text != "" {
					s.emit(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentDelta,
						Text: d.Text,
					})
				}
			case anthropic.InputJSONDelta:
				if d.PartialJSON != "" {
					s.emit(&llm.StreamEvent{
						Type: llm.StreamEventTypeToolCall,
						ToolCall: &llm.ToolCallDelta{
							Index:     int(evt.Index),
							Arguments: d.PartialJSON,
						},
					})
				}
			}

		case anthropic.MessageDeltaEvent:
			stopReason = string(evt.Delta.StopReason)
			usage = &llm.Usage{
				InputTokens:              evt.Usage.InputTokens,
				OutputTokens:             evt.Usage.OutputTokens,
				CacheCreationInputTokens: evt.Usage.CacheCreationInputTokens,
				CacheReadInputTokens:     evt.Usage.CacheReadInputTokens,
			}

		case anthropic.MessageStopEvent:
			s.emit(&llm.StreamEvent{
				Type:       llm.StreamEventTypeStop,
				Usage:      usage,
				StopReason: stopReason,
				Done:       true,
			})
			s.mu.Lock()
			s.done = true
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
	}

	s.mu.Lock()
	if err := s.inner.Err(); err != nil {
		s.err = convertError(err)
	}
	s.done = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
