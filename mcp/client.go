// Package mcp connects to Model Context Protocol servers and exposes their
// tools as executable functions in the registry.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

const clientName = "agentloop"

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Client is the interface for interacting with MCP servers.
type Client interface {
	// Start initializes and starts the MCP client connection.
	Start(ctx context.Context) error

	// ListTools returns all tools available from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool invokes a tool on the MCP server with the given input.
	InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error)

	// Close closes the connection to the MCP server.
	Close() error
}

func toToolDefinitions(result *mcp.ListToolsResult) []ToolDefinition {
	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		inputSchema := make(map[string]interface{})
		inputSchema["type"] = tool.InputSchema.Type
		if tool.InputSchema.Properties != nil {
			inputSchema["properties"] = tool.InputSchema.Properties
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}
		if len(tool.InputSchema.Defs) > 0 {
			inputSchema["$defs"] = tool.InputSchema.Defs
		}

		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema,
		}
	})
}

// toToolOutput flattens a call result into a map. Text content joins under
// "text"; errors surface under "error"/"error_message".
func toToolOutput(result *mcp.CallToolResult) map[string]interface{} {
	output := make(map[string]interface{})

	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		} else if contentStr := mcp.GetTextFromContent(content); contentStr != "" {
			texts = append(texts, contentStr)
		}
	}
	if len(texts) == 1 {
		output["text"] = texts[0]
	} else if len(texts) > 1 {
		output["text"] = texts
	}

	if result.IsError {
		output["error"] = true
		if len(texts) > 0 {
			output["error_message"] = texts[0]
		}
	}

	return output
}
