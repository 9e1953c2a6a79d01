package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/logger"
)

// AnthropicConfig represents configuration for the Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Anthropic API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// OllamaConfig represents configuration for the Ollama LLM provider.
type OllamaConfig struct {
	Host       string `yaml:"host,omitempty"`       // Ollama host (default: "http://localhost:11434")
	Model      string `yaml:"model,omitempty"`      // Default model name
	Extraction string `yaml:"extraction,omitempty"` // Tool-call extraction: "native" (default), "tags", or "json"
}

// OpenAIConfig represents configuration for the OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// LLMPreference represents a single LLM provider/model preference for an agent.
// Agents can specify multiple preferences in order, and the system will use
// the first available provider from the preference list.
type LLMPreference struct {
	Provider    string   `yaml:"provider" json:"provider"`                           // Required: "anthropic", "ollama", or "openai"
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`             // Optional: uses provider default if omitted
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"` // Optional temperature override
}

// AgentConfig represents the configuration for a single agent.
type AgentConfig struct {
	ID            string          `yaml:"id" json:"id"`
	Name          string          `yaml:"name" json:"name"`
	System        string          `yaml:"system_prompt" json:"system"`
	MaxTokens     int64           `yaml:"max_tokens" json:"max_tokens"`
	Tools         []string        `yaml:"tools" json:"tools"`                               // Regex patterns matched against registered tool names
	ToolCallLimit int             `yaml:"tool_call_limit,omitempty" json:"tool_call_limit"` // Max tool calls per run (0 = default)
	LLM           []LLMPreference `yaml:"llm,omitempty" json:"llm,omitempty"`               // Ordered list of provider/model preferences
	Disabled      bool            `yaml:"disabled,omitempty" json:"disabled"`               // default: false
}

// MCPServerConfig represents configuration for an MCP server.
type MCPServerConfig struct {
	Name    string   `yaml:"name,omitempty"`
	Command string   `yaml:"command,omitempty"` // For STDIO transport
	URL     string   `yaml:"url,omitempty"`     // For HTTP transport
	Args    []string `yaml:"args,omitempty"`    // Additional args for STDIO command
	Env     []string `yaml:"env,omitempty"`     // Environment variables for STDIO
}

// Config is the application configuration.
type Config struct {
	Database string `yaml:"database,omitempty"` // SQLite database path
	LogFile  string `yaml:"log_file,omitempty"` // Log file path (empty = stdout)

	// LLM provider configurations
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`

	// Agent configuration
	LLMProviders []string                    `yaml:"llm_providers,omitempty"`
	Agents       map[string]*AgentConfig     `yaml:"agents,omitempty"`
	MCPServers   map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty"`
}

// GetConfigPath returns the default config file path.
// Can be overridden via AGENTLOOP_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("AGENTLOOP_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.agentloop/config.yaml"
	}
	return filepath.Join(homeDir, ".agentloop", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load loads configuration from the given path, merged over defaults.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	defaults := Config{
		Database:     "agentloop.db",
		LogFile:      logger.DefaultLogFile,
		LLMProviders: []string{"anthropic"},
		Ollama: OllamaConfig{
			Host:       "http://localhost:11434",
			Extraction: "native",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Agents:     make(map[string]*AgentConfig),
		MCPServers: make(map[string]*MCPServerConfig),
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var loaded Config
		if err := yaml.Unmarshal(configYAML, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&defaults, loaded, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if defaults.Agents == nil {
		defaults.Agents = make(map[string]*AgentConfig)
	}
	if defaults.MCPServers == nil {
		defaults.MCPServers = make(map[string]*MCPServerConfig)
	}

	// Apply smart defaults to agents
	for id, agentCfg := range defaults.Agents {
		if agentCfg.ID == "" {
			agentCfg.ID = id
		}
		if agentCfg.Name == "" {
			agentCfg.Name = agentCfg.ID
		}
		if agentCfg.MaxTokens == 0 {
			agentCfg.MaxTokens = 2048
		}
	}

	return &defaults, nil
}

// Save saves the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderConfig maps the provider sections onto the resolver's view.
func (c *Config) ProviderConfig() *llm.ProviderConfig {
	return &llm.ProviderConfig{
		AnthropicAPIKey: c.Anthropic.APIKey,
		AnthropicModel:  c.Anthropic.Model,
		OllamaHost:      c.Ollama.Host,
		OllamaModel:     c.Ollama.Model,
		OpenAIAPIKey:    c.OpenAI.APIKey,
		OpenAIBaseURL:   c.OpenAI.BaseURL,
		OpenAIModel:     c.OpenAI.Model,
		OpenAIOrg:       c.OpenAI.Organization,
	}
}

// Preferences converts an agent's LLM preference list to the resolver's form.
func (a *AgentConfig) Preferences() []llm.Preference {
	prefs := make([]llm.Preference, 0, len(a.LLM))
	for _, p := range a.LLM {
		prefs = append(prefs, llm.Preference{
			Provider:    p.Provider,
			Model:       p.Model,
			Temperature: p.Temperature,
		})
	}
	return prefs
}
