package tools

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// MustSchemaFor infers the JSON schema of T and panics on failure. It is
// meant for package-level builtin tool definitions.
func MustSchemaFor[T any]() any {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

func SchemaFor[T any]() (any, error) {
	return jsonschema.For[T](&jsonschema.ForOptions{})
}

// SchemaToMap normalises a tool's parameter schema, whatever its Go type
// (a *jsonschema.Schema, an MCP input schema, a map), into the plain object
// schema that model providers accept: "type" is always set, "properties"
// is never null and the "$schema" dialect marker that MCP servers such as
// Playwright emit is dropped.
func SchemaToMap(params any) (map[string]any, error) {
	m := map[string]any{}
	if params != nil {
		buf, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(buf, &m); err != nil {
			return nil, err
		}
	}

	delete(m, "$schema")
	if m["type"] == nil {
		m["type"] = "object"
	}
	if m["properties"] == nil {
		m["properties"] = map[string]any{}
	}
	if m["required"] == nil {
		delete(m, "required")
	}

	ensurePropertyTypes(m)

	return m, nil
}

// ensurePropertyTypes defaults every untyped property to "object",
// descending into nested properties and array items.
func ensurePropertyTypes(schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}

	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if prop["type"] == nil {
			prop["type"] = "object"
		}

		ensurePropertyTypes(prop)
		if items, ok := prop["items"].(map[string]any); ok {
			ensurePropertyTypes(items)
		}
	}
}

// ConvertSchema normalises params with SchemaToMap and decodes the result
// into v, typically a provider SDK's schema struct.
func ConvertSchema(params, v any) error {
	m, err := SchemaToMap(params)
	if err != nil {
		return err
	}

	buf, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}
