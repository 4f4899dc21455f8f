package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/layering"
)

// OverridesExtension lists the catalog entries that set a parameter.
const OverridesExtension = "x-scenario-overrides"

type schemaNode struct {
	Type       string
	Nullable   bool
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	Enum       []any
	Default    any
	overrides  []string
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Nullable {
		result["nullable"] = true
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if len(n.overrides) > 0 {
		result[OverridesExtension] = append([]string{}, n.overrides...)
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedKeys(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}
	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	return result
}

// Digest identifies the shape of a node for component reuse. Defaults and
// override annotations are part of the shape.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildSchemaGraph(baseline layering.Node, catalog *scenarios.OverrideCatalog, enums bool) *schemaNode {
	root := fromNode(baseline, true)
	if root.Type != "object" {
		root = newObjectNode()
	}
	catalog.Each(func(key scenarios.FragmentKey, fragment layering.Node) bool {
		overlay(root, fragment, key, enums)
		return true
	})
	return root
}

// fromNode infers a schema from a settings value. Baseline values become
// defaults and non-null baseline keys become required.
func fromNode(node layering.Node, withDefaults bool) *schemaNode {
	switch node.Kind() {
	case layering.KindNull:
		return &schemaNode{Nullable: true}
	case layering.KindMapping:
		out := newObjectNode()
		for _, key := range node.Keys() {
			child, _ := node.Get(key)
			out.Properties[key] = fromNode(child, withDefaults)
			if withDefaults && !child.IsNull() {
				out.Required = append(out.Required, key)
			}
		}
		return out
	case layering.KindSequence:
		out := &schemaNode{Type: "array", Items: &schemaNode{}}
		if node.Len() > 0 {
			out.Items = fromNode(node.Index(0), false)
		}
		if withDefaults && scalarItems(node) {
			out.Default = node.Native()
		}
		return out
	default:
		out := &schemaNode{Type: scalarType(node.Value())}
		if withDefaults {
			out.Default = node.Value()
		}
		return out
	}
}

// overlay records fragment on the schema. Parameters the baseline lacks are
// added as optional properties.
func overlay(target *schemaNode, fragment layering.Node, key scenarios.FragmentKey, enums bool) {
	if !fragment.IsMapping() {
		return
	}
	for _, name := range fragment.Keys() {
		value, _ := fragment.Get(name)
		child, ok := target.Properties[name]
		if !ok {
			child = fromNode(value, false)
			if target.Properties == nil {
				target.Properties = map[string]*schemaNode{}
			}
			target.Properties[name] = child
		}
		if value.IsMapping() && child.Type == "object" {
			overlay(child, value, key, enums)
			continue
		}
		child.addOverride(key.String())
		if value.IsNull() {
			child.Nullable = true
			continue
		}
		if enums && child.Type == "string" && value.Kind() == layering.KindScalar {
			child.addEnum(child.Default)
			child.addEnum(value.Value())
		}
	}
}

func (n *schemaNode) addOverride(label string) {
	for _, existing := range n.overrides {
		if existing == label {
			return
		}
	}
	n.overrides = append(n.overrides, label)
	sort.Strings(n.overrides)
}

func (n *schemaNode) addEnum(value any) {
	text, ok := value.(string)
	if !ok {
		return
	}
	for _, existing := range n.Enum {
		if existing == text {
			return
		}
	}
	n.Enum = append(n.Enum, text)
}

func scalarType(value any) string {
	switch value.(type) {
	case bool:
		return "boolean"
	case int:
		return "integer"
	case float64:
		return "number"
	default:
		return "string"
	}
}

func scalarItems(node layering.Node) bool {
	for _, item := range node.Items() {
		if item.IsMapping() || item.IsSequence() {
			return false
		}
	}
	return true
}

func sortedKeys(properties map[string]*schemaNode) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
