package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

func TestLoggingMiddleware_PassesRequestsThrough(t *testing.T) {
	mw := NewLoggingMiddleware(zerolog.Nop())
	ctx := context.Background()
	req := &llm.Request{Model: "m"}

	got, err := mw.BeforeRequest(ctx, req)
	if err != nil || got != req {
		t.Errorf("Expected request unchanged, got %v (err %v)", got, err)
	}

	resp := &llm.Response{Content: "hi"}
	gotResp, err := mw.AfterResponse(ctx, req, resp)
	if err != nil || gotResp != resp {
		t.Errorf("Expected response unchanged, got %v (err %v)", gotResp, err)
	}

	wrapped := errors.New("boom")
	if err := mw.OnError(ctx, req, wrapped); err != wrapped {
		t.Errorf("Expected error unchanged, got %v", err)
	}
}

func TestLoggingMiddleware_StreamHooks(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(zerolog.New(&buf))
	ctx := context.Background()
	req := &llm.Request{Model: "m"}

	got, err := mw.BeforeStream(ctx, req)
	if err != nil || got != req {
		t.Errorf("Expected stream request unchanged, got %v (err %v)", got, err)
	}

	delta := &llm.StreamEvent{Type: llm.StreamEventTypeContentDelta, Text: "chunk"}
	gotEv, err := mw.OnStreamEvent(ctx, req, delta)
	if err != nil || gotEv != delta {
		t.Errorf("Expected delta unchanged, got %v (err %v)", gotEv, err)
	}

	stop := &llm.StreamEvent{
		Type:       llm.StreamEventTypeStop,
		StopReason: "stop",
		Usage:      &llm.Usage{InputTokens: 3, OutputTokens: 7},
		Done:       true,
	}
	if _, err := mw.OnStreamEvent(ctx, req, stop); err != nil {
		t.Fatalf("OnStreamEvent failed: %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "llm stream complete") {
		t.Errorf("Expected terminal event logged, got %q", logged)
	}
	if strings.Contains(logged, "chunk") {
		t.Errorf("Expected per-delta events not to be logged, got %q", logged)
	}

	streamErr := errors.New("cut off")
	if err := mw.OnStreamError(ctx, req, streamErr); err != streamErr {
		t.Errorf("Expected stream error unchanged, got %v", err)
	}
}

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	err      error
	attempts int
}

func (c *flakyClient) Synchronous(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	c.attempts++
	if c.attempts <= c.failures {
		return nil, c.err
	}
	return &llm.Response{Content: "ok"}, nil
}

func (c *flakyClient) Stream(_ context.Context, _ *llm.Request) (llm.Stream, error) {
	c.attempts++
	if c.attempts <= c.failures {
		return nil, c.err
	}
	return &fakeStream{}, nil
}

func TestWithRetry_NonRetryableNotRetried(t *testing.T) {
	inner := &flakyClient{failures: 10, err: llm.NewInvalidRequestError("bad request", nil)}
	client := WithRetry(inner, zerolog.Nop())

	_, err := client.Synchronous(context.Background(), &llm.Request{})
	if err == nil {
		t.Fatal("Expected error")
	}
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) || llmErr.Type != llm.ErrorTypeInvalidRequest {
		t.Errorf("Expected the original invalid request error, got %v", err)
	}
	if inner.attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for a non-retryable error, got %d", inner.attempts)
	}
}

func TestWithRetry_SuccessPassesThrough(t *testing.T) {
	inner := &flakyClient{}
	client := WithRetry(inner, zerolog.Nop())

	resp, err := client.Synchronous(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("Synchronous failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if inner.attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", inner.attempts)
	}
}

func TestWithRetry_StreamEstablishmentNotRetriedOnPermanentError(t *testing.T) {
	inner := &flakyClient{failures: 10, err: llm.NewProviderError("no such model", nil)}
	client := WithRetry(inner, zerolog.Nop())

	if _, err := client.Stream(context.Background(), &llm.Request{}); err == nil {
		t.Fatal("Expected error")
	}
	if inner.attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", inner.attempts)
	}
}
