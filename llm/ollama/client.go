package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

// Client implements llm.Client for Ollama. Models served by Ollama vary in
// how they surface tool calls: recent models emit structured calls, older
// ones embed them in text as delimited regions or as a whole-message JSON
// object. The client owns that choice via its extraction strategy.
type Client struct {
	client    *api.Client
	model     string // Default model when the request names none
	extractor llm.Extractor
	jsonMode  bool
	stop      []string
	logger    zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTagParsing selects delimited-region tool-call extraction for models
// that emit <tool_call> regions in text. The closing tag doubles as a stop
// sequence.
func WithTagParsing() Option {
	return func(c *Client) {
		te := llm.NewTagExtractor(c.logger)
		c.extractor = te
		c.stop = te.StopSequences()
	}
}

// WithJSONMode selects whole-message JSON tool-call extraction and forces
// the model into JSON output format when tools are present.
func WithJSONMode() Option {
	return func(c *Client) {
		c.extractor = llm.JSONModeExtractor{}
		c.jsonMode = true
	}
}

// NewClient creates a Client. An empty host falls back to OLLAMA_HOST or the
// local default.
func NewClient(host, model string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	var inner *api.Client
	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		inner = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		inner, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	c := &Client{
		client: inner,
		model:  model,
		logger: logger.With().Str("component", "ollama_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Extractor implements llm.ExtractorProvider. Nil means native extraction.
func (c *Client) Extractor() llm.Extractor {
	return c.extractor
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

func (c *Client) buildRequest(req *llm.Request, stream bool) (*api.ChatRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages, err := ToMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if req.System != "" {
		messages = append([]api.Message{{Role: "system", Content: req.System}}, messages...)
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  make(map[string]interface{}),
	}

	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		tools, err := ToTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tools: %w", err)
		}
		chatReq.Tools = tools
		if c.jsonMode {
			chatReq.Format = []byte(`"json"`)
		}
		if len(c.stop) > 0 {
			chatReq.Options["stop"] = c.stop
		}
	}

	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	return chatReq, nil
}

// Synchronous implements llm.Client.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	chatReq, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}

	var chatResp api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, llm.NewProviderError("ollama chat request failed", err)
	}

	usage := &llm.Usage{
		InputTokens:  int64(chatResp.Metrics.PromptEvalCount),
		OutputTokens: int64(chatResp.Metrics.EvalCount),
	}
	stopReason := chatResp.DoneReason
	if stopReason == "" {
		stopReason = "stop"
	}

	return &llm.Response{
		Content:    chatResp.Message.Content,
		ToolCalls:  FromToolCalls(chatResp.Message.ToolCalls),
		Usage:      usage,
		StopReason: stopReason,
	}, nil
}

// Stream implements llm.Client.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	chatReq, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, c.client, chatReq), nil
}
