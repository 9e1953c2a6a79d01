package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/tools"
)

// Runner executes agent turns against an LLM client and a tool registry.
// It is safe for concurrent use: all per-run state lives in a RunContext
// created inside Run.
type Runner struct {
	client       llm.Client
	extractor    llm.Extractor
	registry     *tools.Registry
	toolProvider ToolProvider
	persister    MessagePersister
	agent        *Agent
	logger       zerolog.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithPersister installs conversation persistence.
func WithPersister(p MessagePersister) RunnerOption {
	return func(r *Runner) { r.persister = p }
}

// WithToolProvider overrides the default registry-backed tool selection.
func WithToolProvider(tp ToolProvider) RunnerOption {
	return func(r *Runner) { r.toolProvider = tp }
}

// WithExtractor overrides the extraction strategy. By default the client's
// own strategy is used, falling back to native structured extraction.
func WithExtractor(e llm.Extractor) RunnerOption {
	return func(r *Runner) { r.extractor = e }
}

// NewRunner creates a Runner.
func NewRunner(logger zerolog.Logger, client llm.Client, agent *Agent, registry *tools.Registry, opts ...RunnerOption) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	r := &Runner{
		client:   client,
		registry: registry,
		agent:    agent,
		logger:   logger.With().Str("component", "runner").Str("agentID", agent.ID).Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.extractor == nil {
		r.extractor = llm.ExtractorFor(client)
	}
	if r.toolProvider == nil {
		r.toolProvider = NewToolProvider(registry, logger)
	}
	return r, nil
}

// Run executes a single turn: the user message plus history go to the model,
// requested tools run, and the loop continues until the model answers in
// text. The returned string is the visible content across all rounds.
func (r *Runner) Run(ctx context.Context, threadID, userMsg string, history []llm.Message) (string, error) {
	return r.run(ctx, threadID, userMsg, history, false)
}

// RunStream is Run with streaming model responses. Visible text deltas and
// tool progress are delivered through any progress callback installed on ctx,
// in order: a round's text before its tool activity, and each round before
// the next.
func (r *Runner) RunStream(ctx context.Context, threadID, userMsg string, history []llm.Message) (string, error) {
	return r.run(ctx, threadID, userMsg, history, true)
}

func (r *Runner) run(ctx context.Context, threadID, userMsg string, history []llm.Message, streaming bool) (string, error) {
	if userMsg == "" && len(history) == 0 {
		return "", errors.New("nothing to send: empty user message and history")
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	if userMsg != "" {
		messages = append(messages, llm.NewTextMessage(llm.RoleUser, userMsg))
		if r.persister != nil {
			if err := r.persister.AppendUserMessage(ctx, r.agent.ID, threadID, userMsg); err != nil {
				r.logger.Warn().Err(err).Msg("failed to persist user message")
			}
		}
	}

	req := &llm.Request{
		Model:       r.agent.Model,
		Messages:    messages,
		System:      r.agent.SystemPrompt,
		Tools:       r.toolProvider.SpecsFor(r.agent),
		MaxTokens:   r.agent.MaxTokens,
		Temperature: r.agent.Temperature,
	}

	rc := NewRunContext(r.agent.callLimit())
	loop := &toolLoop{
		client:    r.client,
		extractor: r.extractor,
		registry:  r.registry,
		persister: r.persister,
		agentID:   r.agent.ID,
		threadID:  threadID,
		logger:    r.logger,
	}

	result, err := loop.run(ctx, req, rc, streaming)
	if err != nil {
		return "", err
	}

	r.logger.Debug().
		Int("toolCalls", rc.CallsExecuted()).
		Int64("inputTokens", rc.Usage.InputTokens).
		Int64("outputTokens", rc.Usage.OutputTokens).
		Msg("run complete")
	return result, nil
}
