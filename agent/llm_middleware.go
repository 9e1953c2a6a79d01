package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

// LoggingMiddleware logs every request and response at debug level.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger.With().Str("component", "llm_logging").Logger(),
	}
}

// BeforeRequest implements llm.Middleware.
func (m *LoggingMiddleware) BeforeRequest(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	m.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Str("toolChoice", string(req.ToolChoice)).
		Msg("llm request")
	return req, nil
}

// AfterResponse implements llm.Middleware.
func (m *LoggingMiddleware) AfterResponse(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
	ev := m.logger.Debug().
		Str("stopReason", resp.StopReason).
		Int("toolCalls", len(resp.ToolCalls)).
		Int("contentLen", len(resp.Content))
	if resp.Usage != nil {
		ev = ev.Int64("inputTokens", resp.Usage.InputTokens).
			Int64("outputTokens", resp.Usage.OutputTokens)
	}
	ev.Msg("llm response")
	return resp, nil
}

// OnError implements llm.Middleware.
func (m *LoggingMiddleware) OnError(ctx context.Context, req *llm.Request, err error) error {
	m.logger.Warn().Err(err).Str("model", req.Model).Msg("llm request failed")
	return err
}

// BeforeStream implements llm.StreamMiddleware.
func (m *LoggingMiddleware) BeforeStream(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	m.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Str("toolChoice", string(req.ToolChoice)).
		Msg("llm stream request")
	return req, nil
}

// OnStreamEvent implements llm.StreamMiddleware. Only the terminal event is
// logged; per-delta logging would swamp the log at debug level.
func (m *LoggingMiddleware) OnStreamEvent(ctx context.Context, req *llm.Request, event *llm.StreamEvent) (*llm.StreamEvent, error) {
	if event.Type == llm.StreamEventTypeStop {
		ev := m.logger.Debug().Str("stopReason", event.StopReason)
		if event.Usage != nil {
			ev = ev.Int64("inputTokens", event.Usage.InputTokens).
				Int64("outputTokens", event.Usage.OutputTokens)
		}
		ev.Msg("llm stream complete")
	}
	return event, nil
}

// OnStreamError implements llm.StreamMiddleware.
func (m *LoggingMiddleware) OnStreamError(ctx context.Context, req *llm.Request, err error) error {
	m.logger.Warn().Err(err).Str("model", req.Model).Msg("llm stream failed")
	return err
}

var (
	_ llm.Middleware       = (*LoggingMiddleware)(nil)
	_ llm.StreamMiddleware = (*LoggingMiddleware)(nil)
)

// Retry defaults, tuned for provider rate limits rather than transient
// network blips.
const (
	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 1 * time.Minute
	retryMaxElapsedTime  = 5 * time.Minute
)

// retryClient wraps a Client with exponential-backoff retries on retryable
// provider errors (rate limits, transient network failures). Non-retryable
// errors pass through immediately. Retrying lives here at the client
// boundary; the tool loop itself never retries model requests.
type retryClient struct {
	inner  llm.Client
	logger zerolog.Logger
}

// WithRetry wraps a client with retry behavior.
func WithRetry(client llm.Client, logger zerolog.Logger) llm.Client {
	return &retryClient{
		inner:  client,
		logger: logger.With().Str("component", "llm_retry").Logger(),
	}
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// Synchronous implements llm.Client.
func (c *retryClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var resp *llm.Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		resp, err = c.inner.Synchronous(ctx, req)
		return c.classify(ctx, err, attempt)
	}, newBackoff(ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream implements llm.Client. Only stream establishment retries; once
// events are flowing a failure surfaces to the consumer.
func (c *retryClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	var stream llm.Stream
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		stream, err = c.inner.Stream(ctx, req)
		return c.classify(ctx, err, attempt)
	}, newBackoff(ctx))
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// classify turns non-retryable errors into permanent backoff errors and logs
// retryable ones. When the provider supplies a retry-after delay, that delay
// is waited out here before the backoff schedule resumes.
func (c *retryClient) classify(ctx context.Context, err error, attempt int) error {
	if err == nil {
		return nil
	}
	if !llm.IsRetryableError(err) {
		return backoff.Permanent(err)
	}
	if ra := llm.ExtractRetryAfter(err); ra != nil {
		c.logger.Info().Err(err).Int("attempt", attempt).Dur("retryAfter", *ra).
			Msg("retrying llm request after provider delay")
		wait(ctx, *ra)
		return err
	}
	c.logger.Info().Err(err).Int("attempt", attempt).Msg("retrying llm request")
	return err
}

// wait sleeps for the given duration or until the context ends.
func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
