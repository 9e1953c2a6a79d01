package openai

import (
	"context"
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aschepis/agentloop/llm"
)

// stream adapts the SDK's streaming response to llm.Stream. OpenAI scopes
// tool-call fragments by index: the first fragment for an index carries the
// call ID and function name, later fragments carry argument text. Fragments
// pass through with their index intact; reassembly is the consumer's job.
type stream struct {
	ctx     context.Context
	inner   *openai.ChatCompletionStream
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
}

func newStream(ctx context.Context, inner *openai.ChatCompletionStream) *stream {
	s := &stream{
		ctx:     ctx,
		inner:   inner,
		current: -1,
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

func (s *stream) consume() {
	s.emit(&llm.StreamEvent{Type: llm.StreamEventTypeStart})

	var usage *llm.Usage
	var finish openai.FinishReason

	for {
		response, err := s.inner.Recv()
		if err != nil {
			s.mu.Lock()
			if !errors.Is(err, io.EOF) {
				s.err = convertError(err)
			}
			s.mu.Unlock()
			break
		}

		// The usage-bearing chunk arrives last, with no choices.
		if response.Usage != nil {
			usage = &llm.Usage{
				InputTokens:  int64(response.Usage.PromptTokens),
				OutputTokens: int64(response.Usage.CompletionTokens),
			}
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			s.emit(&llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Text: choice.Delta.Content,
			})
		}

		for _, callDelta := range choice.Delta.ToolCalls {
			index := 0
			if callDelta.Index != nil {
				index = *callDelta.Index
			}
			s.emit(&llm.StreamEvent{
				Type: llm.StreamEventTypeToolCall,
				ToolCall: &llm.ToolCallDelta{
					Index:     index,
					ID:        callDelta.ID,
					Name:      callDelta.Function.Name,
					Arguments: callDelta.Function.Arguments,
				},
			})
		}

		if choice.FinishReason != "" {
			finish = choice.FinishReason
		}
	}

	s.mu.Lock()
	failed := s.err != nil
	s.mu.Unlock()
	if !failed {
		s.emit(&llm.StreamEvent{
			Type:       llm.StreamEventTypeStop,
			Usage:      usage,
			StopReason: stopReason(finish),
			Done:       true,
		})
	}

	s.mu.Lock()
	s.done = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
