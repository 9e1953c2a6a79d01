package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/agent"
	"github.com/aschepis/agentloop/config"
	"github.com/aschepis/agentloop/conversations"
	"github.com/aschepis/agentloop/llm"
	looplogger "github.com/aschepis/agentloop/logger"
	"github.com/aschepis/agentloop/mcp"
	"github.com/aschepis/agentloop/migrations"
	"github.com/aschepis/agentloop/progress"
	"github.com/aschepis/agentloop/tools"
)

const mcpStartTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to config file")
		agentID    = flag.String("agent", "", "Agent ID to run (defaults to the only configured agent)")
		threadID   = flag.String("thread", "", "Thread ID to continue (defaults to a new thread)")
		message    = flag.String("message", "", "User message to send")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, uses the configured path")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is empty)")
		dbPath     = flag.String("db", "", "Path to SQLite database file. If not set, uses the configured path")
		noStream   = flag.Bool("no-stream", false, "Disable streaming responses")
	)
	flag.Parse()

	if *message == "" {
		return fmt.Errorf("-message is required")
	}
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	appConfig, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logPath := appConfig.LogFile
	if *logFile != "" {
		logPath = *logFile
	}
	if *pretty {
		logPath = ""
	}
	logger, err := looplogger.New(logPath, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	agentCfg, err := selectAgent(appConfig, *agentID)
	if err != nil {
		return err
	}

	// ---------------------------
	// 1. Open SQLite + conversation store
	// ---------------------------

	database := appConfig.Database
	if *dbPath != "" {
		database = *dbPath
	}
	logger.Info().Str("path", database).Msg("Initializing database")
	db, err := sql.Open("sqlite3", database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.Run(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store := conversations.NewStore(db)

	// ---------------------------
	// 2. Tool registry: built-in toolkits + MCP servers
	// ---------------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := tools.NewRegistry(logger)
	registry.RegisterToolkit(&tools.NotificationToolkit{DefaultTitle: agentCfg.Name})

	mcpClients, err := startMCPServers(ctx, appConfig, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range mcpClients {
			c.Close() //nolint:errcheck // Shutdown path
		}
	}()

	// ---------------------------
	// 3. Resolve provider and build the client
	// ---------------------------

	providers := llm.NewProviderRegistry(appConfig.ProviderConfig(), appConfig.LLMProviders)
	key, err := providers.Resolve(agentCfg.Preferences())
	if err != nil {
		return fmt.Errorf("failed to resolve LLM provider: %w", err)
	}
	logger.Info().Str("provider", key.Provider).Str("model", key.Model).Msg("Resolved LLM provider")

	client, err := config.NewLLMClient(key, appConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	client = llm.WrapWithMiddleware(client, agent.NewLoggingMiddleware(logger))
	client = agent.WithRetry(client, logger)

	// ---------------------------
	// 4. Run the turn
	// ---------------------------

	var temperature *float64
	for _, pref := range agentCfg.LLM {
		if pref.Provider == key.Provider && pref.Temperature != nil {
			temperature = pref.Temperature
			break
		}
	}

	a := &agent.Agent{
		ID:            agentCfg.ID,
		Name:          agentCfg.Name,
		SystemPrompt:  agentCfg.System,
		Model:         key.Model,
		MaxTokens:     agentCfg.MaxTokens,
		Temperature:   temperature,
		ToolCallLimit: agentCfg.ToolCallLimit,
		ToolPatterns:  agentCfg.Tools,
	}

	runner, err := agent.NewRunner(logger, client, a, registry, agent.WithPersister(store))
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	thread := *threadID
	var history []llm.Message
	if thread == "" {
		thread = uuid.New().String()
	} else {
		history, err = store.History(ctx, a.ID, thread)
		if err != nil {
			return fmt.Errorf("failed to load thread history: %w", err)
		}
	}

	ctx = progress.WithCallback(ctx, printProgress)

	var result string
	if *noStream {
		result, err = runner.Run(ctx, thread, *message, history)
	} else {
		result, err = runner.RunStream(ctx, thread, *message, history)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	// Streaming already printed the text as it arrived.
	if *noStream {
		fmt.Println(result)
	} else {
		fmt.Println()
	}
	fmt.Fprintf(os.Stderr, "thread: %s\n", thread)
	return nil
}

// selectAgent picks the agent to run. With no -agent flag a single configured
// agent is unambiguous; anything else is an error listing the choices.
func selectAgent(cfg *config.Config, id string) (*config.AgentConfig, error) {
	if id != "" {
		agentCfg, ok := cfg.Agents[id]
		if !ok {
			return nil, fmt.Errorf("agent %q not found in configuration", id)
		}
		if agentCfg.Disabled {
			return nil, fmt.Errorf("agent %q is disabled", id)
		}
		return agentCfg, nil
	}

	var enabled []*config.AgentConfig
	for _, agentCfg := range cfg.Agents {
		if !agentCfg.Disabled {
			enabled = append(enabled, agentCfg)
		}
	}
	switch len(enabled) {
	case 0:
		return nil, fmt.Errorf("no agents configured")
	case 1:
		return enabled[0], nil
	default:
		ids := make([]string, 0, len(enabled))
		for _, agentCfg := range enabled {
			ids = append(ids, agentCfg.ID)
		}
		return nil, fmt.Errorf("multiple agents configured, pick one with -agent: %v", ids)
	}
}

// startMCPServers connects to each configured MCP server and registers its
// tools. A server that fails to start is logged and skipped rather than
// failing the run.
func startMCPServers(ctx context.Context, cfg *config.Config, registry *tools.Registry, logger zerolog.Logger) ([]mcp.Client, error) {
	var clients []mcp.Client
	adapter := mcp.NewNameAdapter()

	for name, serverCfg := range cfg.MCPServers {
		var (
			client mcp.Client
			err    error
		)
		switch {
		case serverCfg.Command != "":
			client, err = mcp.NewStdioClient(logger, serverCfg.Command, serverCfg.Args, serverCfg.Env)
		case serverCfg.URL != "":
			client, err = mcp.NewHTTPClient(logger, serverCfg.URL)
		default:
			logger.Warn().Str("server", name).Msg("MCP server has neither command nor url, skipping")
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("server", name).Msg("Failed to create MCP client, skipping")
			continue
		}

		startCtx, cancel := context.WithTimeout(ctx, mcpStartTimeout)
		err = client.Start(startCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("server", name).Msg("Failed to start MCP server, skipping")
			client.Close() //nolint:errcheck // Already failing
			continue
		}

		count, err := mcp.RegisterTools(ctx, registry, client, adapter, logger)
		if err != nil {
			logger.Warn().Err(err).Str("server", name).Msg("Failed to register MCP tools, skipping")
			client.Close() //nolint:errcheck // Already failing
			continue
		}
		logger.Info().Str("server", name).Int("tools", count).Msg("MCP server connected")
		clients = append(clients, client)
	}

	return clients, nil
}

func printProgress(ev progress.Event) {
	switch ev.Kind {
	case progress.KindText:
		fmt.Print(ev.Text)
	case progress.KindToolStarted:
		fmt.Fprintf(os.Stderr, "\n[%s running]\n", ev.ToolName)
	case progress.KindToolCompleted:
		if ev.IsError {
			fmt.Fprintf(os.Stderr, "[%s failed]\n", ev.ToolName)
		}
	case progress.KindToolResult:
		fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.ToolName, ev.Text)
	}
}
