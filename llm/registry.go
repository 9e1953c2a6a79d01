package llm

import (
	"fmt"
	"os"
	"sync"

	"github.com/samber/lo"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// Preference is a single provider/model preference. An agent lists these in
// priority order; the first enabled and configured provider wins.
type Preference struct {
	Provider    string
	Model       string
	Temperature *float64
}

// ClientKey uniquely identifies a resolved client configuration.
type ClientKey struct {
	Provider     string
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI-compatible endpoints
	Organization string // For OpenAI
}

// ProviderConfig holds the credentials and endpoints the registry resolves
// against. Client construction is the caller's job; the registry only decides
// which provider and model to use.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
}

// ProviderRegistry manages provider selection and configuration resolution.
type ProviderRegistry struct {
	mu      sync.RWMutex
	enabled map[string]bool
	order   []string // Enabled providers in configuration order
	config  *ProviderConfig
}

// NewProviderRegistry creates a registry over the given config and enabled
// provider names. Order matters for preference-less resolution.
func NewProviderRegistry(config *ProviderConfig, enabledProviders []string) *ProviderRegistry {
	return &ProviderRegistry{
		enabled: lo.SliceToMap(enabledProviders, func(p string) (string, bool) { return p, true }),
		order:   lo.Uniq(enabledProviders),
		config:  config,
	}
}

// IsProviderEnabled reports whether a provider is in the enabled list.
func (r *ProviderRegistry) IsProviderEnabled(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[provider]
}

// IsProviderConfigured reports whether a provider has the credentials it
// needs (API keys, hosts). Environment variables act as fallbacks.
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConfiguredLocked(provider)
}

// Resolve walks the preference list and returns a ClientKey for the first
// provider that is both enabled and configured. With no preferences it falls
// back to any enabled provider with its default model.
func (r *ProviderRegistry) Resolve(prefs []Preference) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(prefs) > 0 {
		attempted := make([]string, 0, len(prefs))
		for _, pref := range prefs {
			attempted = append(attempted, pref.Provider)
			if !r.enabled[pref.Provider] || !r.isConfiguredLocked(pref.Provider) {
				continue
			}
			key, err := r.resolveLocked(pref.Provider, pref.Model)
			if err != nil {
				continue
			}
			return key, nil
		}
		return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v)",
			attempted, lo.Keys(r.enabled))
	}

	if len(r.order) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	for _, provider := range r.order {
		if !r.isConfiguredLocked(provider) {
			continue
		}
		// A preference-less resolve never uses a caller-supplied model: model
		// names are provider-specific, so the provider default applies.
		return r.resolveLocked(provider, "")
	}
	return nil, fmt.Errorf("no enabled provider is configured (enabled: %v)", lo.Keys(r.enabled))
}

func (r *ProviderRegistry) isConfiguredLocked(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		return r.apiKey(r.config.AnthropicAPIKey, "ANTHROPIC_API_KEY") != ""
	case ProviderOllama:
		// Ollama needs no credentials and the host has a default.
		return true
	case ProviderOpenAI:
		return r.apiKey(r.config.OpenAIAPIKey, "OPENAI_API_KEY") != ""
	default:
		return false
	}
}

func (r *ProviderRegistry) apiKey(configured, envVar string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envVar)
}

func (r *ProviderRegistry) resolveLocked(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{Provider: provider, Model: modelOverride}

	switch provider {
	case ProviderAnthropic:
		key.APIKey = r.apiKey(r.config.AnthropicAPIKey, "ANTHROPIC_API_KEY")
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		if key.Model == "" {
			key.Model = r.config.AnthropicModel
		}
		if key.Model == "" {
			key.Model = "claude-haiku-4-5"
		}

	case ProviderOllama:
		key.Host = firstNonEmpty(r.config.OllamaHost, os.Getenv("OLLAMA_HOST"), "http://localhost:11434")
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OllamaModel, os.Getenv("OLLAMA_MODEL"))
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		key.APIKey = r.apiKey(r.config.OpenAIAPIKey, "OPENAI_API_KEY")
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.BaseURL = firstNonEmpty(r.config.OpenAIBaseURL, os.Getenv("OPENAI_BASE_URL"))
		key.Organization = firstNonEmpty(r.config.OpenAIOrg, os.Getenv("OPENAI_ORG_ID"))
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OpenAIModel, os.Getenv("OPENAI_MODEL"), "gpt-4o-mini")
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
