package mcp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// HTTPClient implements Client for streamable HTTP transport.
type HTTPClient struct {
	client  *client.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPClient creates an MCP client that talks to a server at baseURL.
func NewHTTPClient(logger zerolog.Logger, baseURL string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required for HTTP MCP client")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP MCP client: %w", err)
	}

	return &HTTPClient{
		client:  mcpClient,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "mcp_http").Logger(),
	}, nil
}

// Start initializes the MCP client connection. Some HTTP servers handle
// initialization inside Start; when that fails, explicit Initialize is
// attempted against known protocol versions, oldest first.
func (c *HTTPClient) Start(ctx context.Context) error {
	err := c.client.Start(ctx)
	if err == nil {
		c.logger.Info().Str("base_url", c.baseURL).Msg("MCP client started")
		return nil
	}

	protocolVersions := []string{
		"2024-11-05",
		mcp.LATEST_PROTOCOL_VERSION,
	}

	lastErr := err
	for _, protocolVersion := range protocolVersions {
		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{
				ProtocolVersion: protocolVersion,
				Capabilities:    mcp.ClientCapabilities{},
				ClientInfo: mcp.Implementation{
					Name:    clientName,
					Version: "1.0.0",
				},
			},
		}
		if _, initErr := c.client.Initialize(ctx, initReq); initErr != nil {
			lastErr = initErr
			continue
		}
		if startErr := c.client.Start(ctx); startErr != nil {
			lastErr = startErr
			continue
		}
		c.logger.Info().
			Str("base_url", c.baseURL).
			Str("protocol_version", protocolVersion).
			Msg("MCP client started")
		return nil
	}

	return fmt.Errorf("failed to start HTTP MCP client: %w", lastErr)
}

// ListTools returns all tools available from the MCP server.
func (c *HTTPClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Debug().Str("base_url", c.baseURL).Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")
	return toToolDefinitions(result), nil
}

// InvokeTool invokes a tool on the MCP server.
func (c *HTTPClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
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
func (c *HTTPClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
