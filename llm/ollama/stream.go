package ollama

import (
	"context"
	"sync"

	"github.com/ollama/ollama/api"

	"github.com/aschepis/agentloop/llm"
)

// stream adapts Ollama's callback-based chat API to llm.Stream. Ollama
// delivers tool calls whole rather than fragmented, so each one becomes a
// single complete fragment carrying the full argument JSON.
type stream struct {
	ctx     context.Context
	client  *api.Client
	req     *api.ChatRequest
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond
	err     error
	done    bool
	started bool
}

func newStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *stream {
	s := &stream{
		ctx:     ctx,
		client:  client,
		req:     req,
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
	stopReason := "stop"
	callIndex := 0

	err := s.client.Chat(s.ctx, s.req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			s.emit(&llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Text: resp.Message.Content,
			})
		}

		for _, call := range FromToolCalls(resp.Message.ToolCalls) {
			s.emit(&llm.StreamEvent{
				Type: llm.StreamEventTypeToolCall,
				ToolCall: &llm.ToolCallDelta{
					Index:     callIndex,
					ID:        call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
			callIndex++
		}

		if resp.Done {
			usage = &llm.Usage{
				InputTokens:  int64(resp.Metrics.PromptEvalCount),
				OutputTokens: int64(resp.Metrics.EvalCount),
			}
			if resp.DoneReason != "" {
				stopReason = resp.DoneReason
			}
		}
		return nil
	})

	if err != nil {
		s.mu.Lock()
		s.err = llm.NewProviderError("ollama stream failed", err)
		s.done = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}

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
}
