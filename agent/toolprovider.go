package agent

import (
	"regexp"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/tools"
)

// ToolProvider selects the tool specs an agent's requests carry.
type ToolProvider interface {
	SpecsFor(agent *Agent) []llm.ToolSpec
}

// RegistryToolProvider serves specs straight from a tools.Registry, filtered
// by the agent's tool patterns.
type RegistryToolProvider struct {
	registry *tools.Registry
	logger   zerolog.Logger
}

// NewToolProvider creates a provider over a registry.
func NewToolProvider(registry *tools.Registry, logger zerolog.Logger) *RegistryToolProvider {
	return &RegistryToolProvider{
		registry: registry,
		logger:   logger.With().Str("component", "tool_provider").Logger(),
	}
}

// SpecsFor implements ToolProvider. Patterns are regular expressions matched
// against tool names; an agent with no patterns sees every tool. Patterns
// matching nothing get a warning but never fail the run.
func (p *RegistryToolProvider) SpecsFor(agent *Agent) []llm.ToolSpec {
	specs := p.registry.Specs()
	if agent == nil || len(agent.ToolPatterns) == 0 {
		return specs
	}

	matchers := make([]*regexp.Regexp, 0, len(agent.ToolPatterns))
	for _, pattern := range agent.ToolPatterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			p.logger.Warn().Str("pattern", pattern).Err(err).Msg("invalid tool pattern")
			continue
		}
		matchers = append(matchers, re)
	}

	selected := lo.Filter(specs, func(spec llm.ToolSpec, _ int) bool {
		return lo.SomeBy(matchers, func(re *regexp.Regexp) bool {
			return re.MatchString(spec.Name)
		})
	})

	if len(selected) == 0 && len(matchers) > 0 {
		p.logger.Warn().
			Str("agentID", agent.ID).
			Strs("patterns", agent.ToolPatterns).
			Msg("tool patterns matched no tools")
	}
	return selected
}
