package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

// Client implements llm.Client for the Anthropic Messages API. Anthropic
// returns tool calls as structured tool_use blocks, so the default native
// extraction strategy applies.
type Client struct {
	client *anthropic.Client
	logger zerolog.Logger
}

// NewClient creates a Client with the given API key.
func NewClient(apiKey string, logger zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: &client,
		logger: logger.With().Str("component", "anthropic_client").Logger(),
	}, nil
}

func (c *Client) buildParams(req *llm.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  ToMessageParams(req.Messages),
		System:    buildSystemBlocks(req.System),
	}
	// Forcing a run to finish without tools is expressed by sending none at
	// all; the API then cannot emit tool_use blocks.
	if req.ToolChoice != llm.ToolChoiceNone {
		params.Tools = ToToolUnionParams(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// Synchronous implements llm.Client.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	message, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, convertError(err)
	}

	resp := FromMessage(message)
	if resp.Usage.CacheCreationInputTokens > 0 || resp.Usage.CacheReadInputTokens > 0 {
		c.logger.Debug().
			Int64("input_tokens", resp.Usage.InputTokens).
			Int64("cache_creation_tokens", resp.Usage.CacheCreationInputTokens).
			Int64("cache_read_tokens", resp.Usage.CacheReadInputTokens).
			Msg("Prompt cache stats")
	}
	return resp, nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))
	return newStream(ctx, stream, c.logger), nil
}

// buildSystemBlocks creates system text blocks with prompt caching enabled.
// Cache control on the system block caches the full prefix (tools + system),
// reducing cost and latency on the repeated requests a tool loop makes.
func buildSystemBlocks(systemPrompt string) []anthropic.TextBlockParam {
	if systemPrompt == "" {
		return nil
	}
	return []anthropic.TextBlockParam{
		{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
	}
}

// convertError maps SDK errors onto the provider-neutral taxonomy.
func convertError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("anthropic request failed", err)
	}

	switch apiErr.StatusCode {
	case 429:
		var retryAfter *time.Duration
		if ra := apiErr.Response.Header.Get("retry-after"); ra != "" {
			if d, parseErr := time.ParseDuration(ra + "s"); parseErr == nil {
				retryAfter = &d
			}
		}
		return llm.NewRateLimitError("anthropic rate limit", retryAfter, err)
	case 413:
		return llm.NewRequestTooLargeError("anthropic request too large", err)
	case 400, 401, 403, 404:
		return llm.NewInvalidRequestError("anthropic rejected request", err)
	default:
		return llm.NewProviderError("anthropic request failed", err)
	}
}
