package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/progress"
	"github.com/aschepis/agentloop/tools"
)

// Loop safeguards. maxIterations bounds model round-trips per run;
// maxRepeatedFailures breaks runs where the model keeps retrying an
// identical failing call.
const (
	maxIterations       = 20
	maxRepeatedFailures = 3
)

const (
	missingFunctionResult = "Could not find function to call."
	callLimitResult       = "Tool call limit reached. No further tool calls are allowed for this run."
)

// toolCallKey identifies a call by name and raw input for repeated-failure
// tracking.
type toolCallKey struct {
	toolName string
	input    string
}

// RunContext is the mutable state of a single run. It is created fresh per
// run; nothing here outlives the run or leaks between concurrent runs.
type RunContext struct {
	// CallLimit is the maximum number of tool calls this run may execute.
	// Once reached, ToolChoice flips to none and remaining requested calls
	// get a limit notice instead of executing.
	CallLimit int

	// ToolChoice is the choice sent on the next model request.
	ToolChoice llm.ToolChoice

	// Usage aggregates token usage across all rounds of the run.
	Usage llm.Usage

	callsExecuted    int
	repeatedFailures map[toolCallKey]int
}

// NewRunContext creates run state with the given call limit.
func NewRunContext(callLimit int) *RunContext {
	return &RunContext{
		CallLimit:        callLimit,
		ToolChoice:       llm.ToolChoiceAuto,
		repeatedFailures: make(map[toolCallKey]int),
	}
}

// CallsExecuted reports how many tool calls have run so far.
func (rc *RunContext) CallsExecuted() int {
	return rc.callsExecuted
}

func (rc *RunContext) addUsage(u *llm.Usage) {
	if u == nil {
		return
	}
	rc.Usage.InputTokens += u.InputTokens
	rc.Usage.OutputTokens += u.OutputTokens
	rc.Usage.CacheCreationInputTokens += u.CacheCreationInputTokens
	rc.Usage.CacheReadInputTokens += u.CacheReadInputTokens
}

// toolLoop bundles the collaborators one run needs.
type toolLoop struct {
	client    llm.Client
	extractor llm.Extractor
	registry  *tools.Registry
	persister MessagePersister
	agentID   string
	threadID  string
	logger    zerolog.Logger
}

// run drives the request/extract/execute cycle until the model answers
// without tool calls, a terminal tool ends the run, or a safeguard trips.
// Visible content from every round is concatenated into the returned text.
func (l *toolLoop) run(ctx context.Context, req *llm.Request, rc *RunContext, streaming bool) (string, error) {
	conversation := req.Messages
	var transcript strings.Builder

	for iteration := 1; iteration <= maxIterations; iteration++ {
		currentReq := &llm.Request{
			Model:       req.Model,
			Messages:    conversation,
			System:      req.System,
			Tools:       req.Tools,
			ToolChoice:  rc.ToolChoice,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}

		l.logger.Debug().
			Int("iteration", iteration).
			Int("messages", len(conversation)).
			Int("tools", len(req.Tools)).
			Str("toolChoice", string(rc.ToolChoice)).
			Msg("requesting model response")

		started := time.Now()
		var resp *llm.Response
		var firstToken time.Duration
		var err error
		if streaming {
			resp, firstToken, err = l.streamResponse(ctx, currentReq)
		} else {
			resp, err = l.client.Synchronous(ctx, currentReq)
		}
		if err != nil {
			return "", err
		}

		calls, visible := l.extractor.Extract(resp)
		rc.addUsage(resp.Usage)

		assistant := llm.NewToolCallMessage(visible, calls)
		assistant.Metrics = &llm.MessageMetrics{
			Duration:         time.Since(started),
			TimeToFirstToken: firstToken,
		}
		if resp.Usage != nil {
			assistant.Metrics.InputTokens = resp.Usage.InputTokens
			assistant.Metrics.OutputTokens = resp.Usage.OutputTokens
		}
		conversation = append(conversation, assistant)

		if visible != "" {
			if transcript.Len() > 0 {
				transcript.WriteString("\n")
			}
			transcript.WriteString(visible)
		}

		if len(calls) == 0 {
			l.persistAssistant(ctx, visible)
			return strings.TrimSpace(transcript.String()), nil
		}

		l.persistToolCalls(ctx, calls)

		results, stop, err := l.runToolCalls(ctx, rc, calls)
		if err != nil {
			return "", err
		}
		l.persistResults(ctx, results)
		conversation = append(conversation, results...)

		if stop {
			l.logger.Debug().Msg("terminal tool call, ending run")
			return strings.TrimSpace(transcript.String()), nil
		}
	}

	return "", fmt.Errorf("tool loop exceeded maximum iterations (%d)", maxIterations)
}

// streamResponse consumes one streamed model response into a complete
// Response, emitting visible text deltas as progress along the way. When the
// extraction strategy embeds tool calls in text, those regions are filtered
// from the emitted deltas.
func (l *toolLoop) streamResponse(ctx context.Context, req *llm.Request) (*llm.Response, time.Duration, error) {
	stream, err := l.client.Stream(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = stream.Close() }()

	var filter *llm.TagFilter
	if te, ok := l.extractor.(*llm.TagExtractor); ok {
		filter = llm.NewTagFilter(te.Open, te.Close)
	}

	assembler := llm.NewAssembler()
	for stream.Next() {
		ev := stream.Event()
		if ev == nil {
			continue
		}
		assembler.Add(ev)
		if ev.Type == llm.StreamEventTypeContentDelta {
			text := ev.Text
			if filter != nil {
				text = filter.Feed(text)
			}
			progress.Text(ctx, text)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, err
	}
	return assembler.Response(), assembler.FirstTokenLatency(), nil
}

// runToolCalls executes the round's calls sequentially, in list order. Every
// requested call yields exactly one result message, executed or not. The
// returned stop flag is set when a terminal tool ran.
func (l *toolLoop) runToolCalls(ctx context.Context, rc *RunContext, calls []llm.ToolCall) ([]llm.Message, bool, error) {
	results := make([]llm.Message, 0, len(calls))
	var redirected []llm.Message
	stop := false

	for _, call := range calls {
		if rc.CallLimit > 0 && rc.callsExecuted >= rc.CallLimit {
			l.logger.Info().
				Str("tool", call.Name).
				Int("limit", rc.CallLimit).
				Msg("tool call limit reached, forcing tool choice none")
			rc.ToolChoice = llm.ToolChoiceNone
			results = append(results, llm.NewToolResultMessage(call.ID, call.Name, callLimitResult, false))
			continue
		}

		fn, ok := l.registry.Resolve(call.Name)
		if !ok {
			l.logger.Warn().Str("tool", call.Name).Msg("model requested unknown function")
			results = append(results, llm.NewToolResultMessage(call.ID, call.Name, missingFunctionResult, true))
			continue
		}

		key := toolCallKey{toolName: call.Name, input: call.Arguments}

		args, err := tools.DecodeArguments(call.Arguments)
		if err != nil {
			l.logger.Warn().Str("tool", call.Name).Err(err).Msg("failed to decode tool arguments")
			rc.callsExecuted++
			if fatal := l.trackFailure(rc, key, err); fatal != nil {
				return nil, false, fatal
			}
			results = append(results, llm.NewToolResultMessage(call.ID, call.Name, err.Error(), true))
			continue
		}
		if fn.SanitizeArguments {
			args = tools.SanitizeArguments(args)
		}

		fc := tools.NewCall(fn, call.ID, args)
		fc.Execute(ctx, l.agentID)
		rc.callsExecuted++

		if fc.Error != "" {
			l.logger.Warn().Str("tool", call.Name).Str("error", fc.Error).Msg("tool call failed")
			if fatal := l.trackFailure(rc, key, errors.New(fc.Error)); fatal != nil {
				return nil, false, fatal
			}
		} else {
			delete(rc.repeatedFailures, key)
		}

		msg := llm.NewToolResultMessage(call.ID, call.Name, fc.ResultContent(), fc.Error != "")
		if fn.StopAfterToolCall || (fc.Redirect != nil && fc.Redirect.Stop) {
			msg.StopAfterToolCall = true
			stop = true
		}
		results = append(results, msg)

		if fc.Redirect != nil {
			if fc.Redirect.UserMessage != "" {
				redirected = append(redirected, llm.NewTextMessage(llm.RoleUser, fc.Redirect.UserMessage))
			}
			if fc.Redirect.AgentMessage != "" {
				redirected = append(redirected, llm.NewTextMessage(llm.RoleAssistant, fc.Redirect.AgentMessage))
			}
			redirected = append(redirected, fc.Redirect.ExtraMessages...)
		}
	}

	return append(results, redirected...), stop, nil
}

// trackFailure counts identical failing calls and turns the Nth repeat into
// a fatal loop break.
func (l *toolLoop) trackFailure(rc *RunContext, key toolCallKey, err error) error {
	rc.repeatedFailures[key]++
	if rc.repeatedFailures[key] >= maxRepeatedFailures {
		l.logger.Warn().
			Str("tool", key.toolName).
			Str("input", key.input).
			Int("failures", rc.repeatedFailures[key]).
			Msg("tool repeatedly failed with same input, breaking loop")
		return fmt.Errorf("tool %q repeatedly failed with same input after %d attempts: %v",
			key.toolName, maxRepeatedFailures, err)
	}
	return nil
}

func (l *toolLoop) persistAssistant(ctx context.Context, content string) {
	if l.persister == nil || content == "" {
		return
	}
	if err := l.persister.AppendAssistantMessage(ctx, l.agentID, l.threadID, content); err != nil {
		l.logger.Warn().Err(err).Msg("failed to persist assistant message")
	}
}

func (l *toolLoop) persistToolCalls(ctx context.Context, calls []llm.ToolCall) {
	if l.persister == nil {
		return
	}
	for _, call := range calls {
		if err := l.persister.AppendToolCall(ctx, l.agentID, l.threadID, call); err != nil {
			l.logger.Warn().Err(err).Str("tool", call.Name).Msg("failed to persist tool call")
		}
	}
}

func (l *toolLoop) persistResults(ctx context.Context, results []llm.Message) {
	if l.persister == nil {
		return
	}
	for _, msg := range results {
		if msg.Role != llm.RoleTool {
			continue
		}
		if err := l.persister.AppendToolResult(ctx, l.agentID, l.threadID, msg); err != nil {
			l.logger.Warn().Err(err).Str("tool", msg.ToolName).Msg("failed to persist tool result")
		}
	}
}
