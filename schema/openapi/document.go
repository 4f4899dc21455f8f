package openapi

import (
	"fmt"
	"sort"
	"strings"
)

type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	root     *schemaNode
}

func newDocumentBuilder(config generatorConfig, root *schemaNode) *documentBuilder {
	return &documentBuilder{
		config:   config,
		registry: newComponentRegistry(),
		root:     root,
	}
}

func (b *documentBuilder) build() (map[string]any, error) {
	if b.root == nil {
		return nil, fmt.Errorf("openapi: settings schema is empty")
	}
	b.registry.count(b.root)

	var settings map[string]any
	if name := b.config.rootComponent; name != "" {
		entry := b.registry.publish(name, b.root)
		entry.schema = b.expand(b.root, name)
		settings = entry.ref()
	} else {
		settings = b.schemaFor(b.root, "settings")
	}

	paths := map[string]any{
		b.config.operation.Path: map[string]any{
			b.method(): b.settingsOperation(settings),
		},
	}
	if path := b.config.casePath; path != "" {
		paths[path] = map[string]any{"get": b.caseOperation(settings)}
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.info(),
		"paths":   paths,
	}
	if schemas := b.registry.schemas(); schemas != nil {
		document["components"] = map[string]any{"schemas": schemas}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) info() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) method() string {
	if method := strings.ToLower(b.config.operation.Method); method != "" {
		return method
	}
	return "post"
}

func (b *documentBuilder) settingsOperation(settings map[string]any) map[string]any {
	operationID := b.config.operation.OperationID
	if operationID == "" {
		operationID = b.method() + ":" + b.config.operation.Path
	}
	operation := map[string]any{
		"operationId": operationID,
		"requestBody": map[string]any{
			"required": true,
			"content":  b.content(settings),
		},
		"responses": b.responses(),
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	return operation
}

// caseOperation describes fetching the resolved settings of one case in one
// planning year. Resolved settings share the baseline schema.
func (b *documentBuilder) caseOperation(settings map[string]any) map[string]any {
	return map[string]any{
		"operationId": "get:" + b.config.casePath,
		"summary":     "Resolved settings of one case in one planning year",
		"parameters": []any{
			pathParameter("case_id", map[string]any{"type": "string"}),
			pathParameter("planning_year", map[string]any{"type": "integer"}),
		},
		"responses": map[string]any{
			"200": map[string]any{
				"description": "Resolved settings",
				"content":     b.content(settings),
			},
			"404": map[string]any{"description": "No scenario row for the case and year"},
		},
	}
}

func (b *documentBuilder) content(schema map[string]any) map[string]any {
	return map[string]any{
		b.config.contentType: map[string]any{"schema": schema},
	}
}

func (b *documentBuilder) responses() map[string]any {
	out := make(map[string]any, len(b.config.responses))
	for status, response := range b.config.responses {
		out[status] = map[string]any{"description": response.Description}
	}
	return out
}

func pathParameter(name string, schema map[string]any) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "path",
		"required": true,
		"schema":   schema,
	}
}

// schemaFor renders node, referencing a component when its shape is shared.
func (b *documentBuilder) schemaFor(node *schemaNode, hint string) map[string]any {
	if !b.registry.shared(node) {
		return b.expand(node, hint)
	}
	if entry, ok := b.registry.lookup(node); ok {
		return entry.ref()
	}
	entry := b.registry.publish(hint, node)
	entry.schema = b.expand(node, hint)
	return entry.ref()
}

func (b *documentBuilder) expand(node *schemaNode, hint string) map[string]any {
	result := node.baseMap()
	if node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, name := range sortedKeys(node.Properties) {
			props[name] = b.schemaFor(node.Properties[name], hint+"."+name)
		}
		result["properties"] = props
	}
	if len(node.Required) > 0 {
		required := append([]string{}, node.Required...)
		sort.Strings(required)
		result["required"] = required
	}
	if node.Items != nil {
		result["items"] = b.schemaFor(node.Items, hint+".item")
	}
	return result
}

func validateDocument(document map[string]any) error {
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	for _, field := range []string{"title", "version"} {
		if value, _ := info[field].(string); value == "" {
			return fmt.Errorf("openapi: info.%s must be set", field)
		}
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for path, value := range paths {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("openapi: path %q must start with /", path)
		}
		item, _ := value.(map[string]any)
		if len(item) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", path)
		}
		for method, value := range item {
			operation, _ := value.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, path)
			}
			if id, _ := operation["operationId"].(string); id == "" {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, path)
			}
			responses, _ := operation["responses"].(map[string]any)
			if len(responses) == 0 {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, path)
			}
			if body, ok := operation["requestBody"].(map[string]any); ok {
				if content, _ := body["content"].(map[string]any); len(content) == 0 {
					return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, path)
				}
			}
		}
	}
	return nil
}
