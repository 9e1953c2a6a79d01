package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/samber/lo"

	"github.com/aschepis/agentloop/llm"
)

// reservedParams are parameter names the runner injects itself. They never
// appear in the schema shown to the model, even if a params struct declares
// them.
var reservedParams = map[string]bool{
	"agent": true,
	"call":  true,
}

// FilterReservedParams strips reserved injected parameter names from a
// schema's properties and required list.
func FilterReservedParams(schema llm.ToolSchema) llm.ToolSchema {
	if schema.Properties != nil {
		schema.Properties = lo.OmitBy(schema.Properties, func(name string, _ interface{}) bool {
			return reservedParams[name]
		})
	}
	schema.Required = lo.Filter(schema.Required, func(name string, _ int) bool {
		return !reservedParams[name]
	})
	return schema
}

// SchemaFor derives a ToolSchema from a params struct by reflection. Fields
// become properties named by their json tags; a field is required unless its
// tag carries omitempty or the jsonschema tag says otherwise.
func SchemaFor(params any) (llm.ToolSchema, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	reflected := reflector.Reflect(params)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return llm.ToolSchema{}, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return llm.ToolSchema{}, fmt.Errorf("unmarshal reflected schema: %w", err)
	}

	schema := llm.ToolSchema{
		Type:        "object",
		Properties:  map[string]interface{}{},
		ExtraFields: map[string]interface{}{},
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		schema.Properties = props
	}
	if required, ok := m["required"].([]interface{}); ok {
		for _, name := range required {
			if s, ok := name.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	for key, value := range m {
		switch key {
		case "$schema", "type", "properties", "required":
		default:
			schema.ExtraFields[key] = value
		}
	}

	return FilterReservedParams(schema), nil
}

// MustSchemaFor is SchemaFor for package-level tool definitions, panicking on
// reflection failure.
func MustSchemaFor(params any) llm.ToolSchema {
	schema, err := SchemaFor(params)
	if err != nil {
		panic(err)
	}
	return schema
}
