package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// StdioClient implements Client for STDIO transport.
type StdioClient struct {
	client  *client.Client
	command string
	logger  zerolog.Logger
}

// NewStdioClient creates an MCP client that launches command as a subprocess
// and speaks the protocol over its stdio. A command containing spaces is
// split; extra args and env entries pass through to the subprocess.
func NewStdioClient(logger zerolog.Logger, command string, args, env []string) (*StdioClient, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for STDIO MCP client")
	}

	logger = logger.With().Str("component", "mcp_stdio").Logger()

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(parts[1:], args...)

	logger.Debug().Str("command", cmd).Strs("args", cmdArgs).Msg("Creating STDIO MCP client")
	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	return &StdioClient{
		client:  mcpClient,
		command: cmd,
		logger:  logger,
	}, nil
}

// Start initializes the MCP client connection. Initialize and Start run in
// goroutines so a hung server process is bounded by ctx rather than blocking
// forever.
func (c *StdioClient) Start(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: "1.0.0",
			},
		},
	}

	initDone := make(chan error, 1)
	go func() {
		_, initErr := c.client.Initialize(ctx, initReq)
		initDone <- initErr
	}()
	select {
	case err := <-initDone:
		if err != nil {
			return fmt.Errorf("failed to initialize MCP client: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during initialize: %w", ctx.Err())
	}

	startDone := make(chan error, 1)
	go func() {
		startDone <- c.client.Start(ctx)
	}()
	select {
	case err := <-startDone:
		if err != nil {
			return fmt.Errorf("failed to start MCP client: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during start: %w", ctx.Err())
	}

	c.logger.Info().Str("command", c.command).Msg("MCP client started")
	return nil
}

// ListTools returns all tools available from the MCP server.
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Debug().Str("command", c.command).Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")
	return toToolDefinitions(result), nil
}

// InvokeTool invokes a tool on the MCP server.
func (c *StdioClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	c.logger.Debug().Str("tool_name", name).Str("command", c.command).Msg("Invoking tool on MCP server")

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}
	return toToolOutput(result), nil
}

// Close closes the connection to the MCP server.
func (c *StdioClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
