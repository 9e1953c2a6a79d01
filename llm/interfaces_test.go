package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedClient struct {
	resp    *Response
	events  []*StreamEvent
	err     error
	lastReq *Request
}

func (c *scriptedClient) Synchronous(_ context.Context, req *Request) (*Response, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *scriptedClient) Stream(_ context.Context, req *Request) (Stream, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return &scriptedStream{events: c.events}, nil
}

type scriptedStream struct {
	events  []*StreamEvent
	current int
	err     error
}

func (s *scriptedStream) Next() bool {
	if s.current >= len(s.events) {
		return false
	}
	s.current++
	return true
}

func (s *scriptedStream) Event() *StreamEvent { return s.events[s.current-1] }
func (s *scriptedStream) Err() error          { return s.err }
func (s *scriptedStream) Close() error        { return nil }

// streamAware combines the request and stream hook sets the way a full
// middleware implementation would.
type streamAware struct {
	MiddlewareFunc
	StreamMiddlewareFunc
}

func TestWrapWithMiddleware_NoMiddleware(t *testing.T) {
	client := &scriptedClient{}
	if got := WrapWithMiddleware(client); got != Client(client) {
		t.Error("Expected the client back unchanged when no middleware is given")
	}
}

func TestWrapWithMiddleware_Synchronous(t *testing.T) {
	client := &scriptedClient{resp: &Response{Content: "hello"}}
	wrapped := WrapWithMiddleware(client, MiddlewareFunc{
		BeforeRequestFunc: func(_ context.Context, req *Request) (*Request, error) {
			modified := *req
			modified.Model = "rewritten-model"
			return &modified, nil
		},
		AfterResponseFunc: func(_ context.Context, _ *Request, resp *Response) (*Response, error) {
			modified := *resp
			modified.Content = strings.ToUpper(resp.Content)
			return &modified, nil
		},
	})

	resp, err := wrapped.Synchronous(context.Background(), &Request{Model: "original"})
	if err != nil {
		t.Fatalf("Synchronous failed: %v", err)
	}
	if client.lastReq.Model != "rewritten-model" {
		t.Errorf("Expected BeforeRequest rewrite to reach the client, got %q", client.lastReq.Model)
	}
	if resp.Content != "HELLO" {
		t.Errorf("Expected AfterResponse to transform the response, got %q", resp.Content)
	}
}

func TestWrapWithMiddleware_OnError(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream down")}
	wrapped := WrapWithMiddleware(client, MiddlewareFunc{
		OnErrorFunc: func(_ context.Context, _ *Request, err error) error {
			return NewProviderError("wrapped", err)
		},
	})

	_, err := wrapped.Synchronous(context.Background(), &Request{})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("Expected OnError to rewrap the error, got %v", err)
	}
	if llmErr.Type != ErrorTypeProvider {
		t.Errorf("Expected provider error type, got %s", llmErr.Type)
	}
}

func TestWrapWithMiddleware_StreamHooks(t *testing.T) {
	client := &scriptedClient{events: []*StreamEvent{
		{Type: StreamEventTypeContentDelta, Text: "one"},
		{Type: StreamEventTypeContentDelta, Text: "two"},
		{Type: StreamEventTypeStop, StopReason: "stop", Done: true},
	}}

	var seen []StreamEventType
	mw := streamAware{
		StreamMiddlewareFunc: StreamMiddlewareFunc{
			BeforeStreamFunc: func(_ context.Context, req *Request) (*Request, error) {
				modified := *req
				modified.Model = "stream-model"
				return &modified, nil
			},
			OnStreamEventFunc: func(_ context.Context, _ *Request, event *StreamEvent) (*StreamEvent, error) {
				seen = append(seen, event.Type)
				if event.Type == StreamEventTypeContentDelta {
					modified := *event
					modified.Text = strings.ToUpper(event.Text)
					return &modified, nil
				}
				return event, nil
			},
		},
	}

	stream, err := WrapWithMiddleware(client, mw).Stream(context.Background(), &Request{Model: "original"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	if client.lastReq.Model != "stream-model" {
		t.Errorf("Expected BeforeStream rewrite to reach the client, got %q", client.lastReq.Model)
	}

	var text strings.Builder
	for stream.Next() {
		if ev := stream.Event(); ev.Type == StreamEventTypeContentDelta {
			text.WriteString(ev.Text)
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream errored: %v", err)
	}

	if text.String() != "ONETWO" {
		t.Errorf("Expected OnStreamEvent to transform deltas, got %q", text.String())
	}
	if len(seen) != 3 {
		t.Errorf("Expected every event to pass through the hook, saw %d", len(seen))
	}
}

func TestWrapWithMiddleware_OnStreamError(t *testing.T) {
	client := &scriptedClient{err: errors.New("connect refused")}
	wrapped := WrapWithMiddleware(client, streamAware{
		StreamMiddlewareFunc: StreamMiddlewareFunc{
			OnStreamErrorFunc: func(_ context.Context, _ *Request, err error) error {
				return NewNetworkError("stream setup failed", err)
			},
		},
	})

	_, err := wrapped.Stream(context.Background(), &Request{})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("Expected OnStreamError to rewrap the error, got %v", err)
	}
	if llmErr.Type != ErrorTypeNetwork {
		t.Errorf("Expected network error type, got %s", llmErr.Type)
	}
}
