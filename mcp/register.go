package mcp

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/tools"
)

// RegisterTools lists the server's tools and registers each as an executable
// function under its safe name. Invocations route back to the server with the
// original name. Returns the number of tools registered.
func RegisterTools(ctx context.Context, reg *tools.Registry, c Client, adapter *NameAdapter, logger zerolog.Logger) (int, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list MCP tools: %w", err)
	}

	for _, def := range defs {
		safeName := adapter.GetSafeName(def.Name)
		originalName := def.Name

		reg.Register(&tools.Function{
			Name:              safeName,
			Description:       def.Description,
			Parameters:        tools.FilterReservedParams(schemaFromDefinition(def)),
			SanitizeArguments: true,
			Entrypoint: func(ctx context.Context, _ *tools.CallContext, args map[string]any) (any, error) {
				output, err := c.InvokeTool(ctx, originalName, args)
				if err != nil {
					return nil, err
				}
				if isErr, _ := output["error"].(bool); isErr {
					if msg, _ := output["error_message"].(string); msg != "" {
						return nil, fmt.Errorf("%s", msg)
					}
					return nil, fmt.Errorf("tool %s reported an error", originalName)
				}
				if text, ok := output["text"]; ok {
					return text, nil
				}
				return output, nil
			},
		})

		logger.Debug().
			Str("tool", safeName).
			Str("mcp_name", originalName).
			Msg("Registered MCP tool")
	}

	return len(defs), nil
}

// schemaFromDefinition maps an MCP input schema onto the neutral schema type.
// Keys beyond type/properties/required (e.g. $defs) ride along as extra fields.
func schemaFromDefinition(def ToolDefinition) llm.ToolSchema {
	schema := llm.ToolSchema{Type: "object"}
	for key, value := range def.InputSchema {
		switch key {
		case "type":
			if t, ok := value.(string); ok && t != "" {
				schema.Type = t
			}
		case "properties":
			if props, ok := value.(map[string]interface{}); ok {
				schema.Properties = props
			}
		case "required":
			switch req := value.(type) {
			case []string:
				schema.Required = req
			case []interface{}:
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		default:
			if schema.ExtraFields == nil {
				schema.ExtraFields = make(map[string]interface{})
			}
			schema.ExtraFields[key] = value
		}
	}
	return schema
}
