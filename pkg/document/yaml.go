package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-scenarios/layering"
)

const mergeKey = "<<"

func decodeYAML(data []byte) (layering.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return layering.Null(), err
	}
	return fromYAML(&root, 0)
}

// fromYAML converts a yaml.Node keeping mapping order. Aliases are expanded
// and << merge keys fill keys the mapping does not set itself.
func fromYAML(node *yaml.Node, depth int) (layering.Node, error) {
	if depth > 256 {
		return layering.Null(), fmt.Errorf("yaml nesting too deep at line %d", node.Line)
	}
	switch node.Kind {
	case 0:
		return layering.Null(), nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return layering.Null(), nil
		}
		return fromYAML(node.Content[0], depth+1)
	case yaml.AliasNode:
		if node.Alias == nil {
			return layering.Null(), fmt.Errorf("unknown alias %q at line %d", node.Value, node.Line)
		}
		return fromYAML(node.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]layering.Node, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := fromYAML(child, depth+1)
			if err != nil {
				return layering.Null(), err
			}
			items = append(items, item)
		}
		return layering.Sequence(items...), nil
	case yaml.MappingNode:
		return mappingFromYAML(node, depth)
	case yaml.ScalarNode:
		if node.Tag == "!!timestamp" || node.Tag == "!!binary" {
			return layering.Scalar(node.Value), nil
		}
		var value any
		if err := node.Decode(&value); err != nil {
			return layering.Null(), fmt.Errorf("line %d: %w", node.Line, err)
		}
		return layering.FromNative(value)
	default:
		return layering.Null(), fmt.Errorf("unsupported yaml node kind %d at line %d", node.Kind, node.Line)
	}
}

func mappingFromYAML(node *yaml.Node, depth int) (layering.Node, error) {
	out := layering.NewMapping()
	var merges []layering.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if keyNode.Tag == "!!merge" || (keyNode.Kind == yaml.ScalarNode && keyNode.Value == mergeKey) {
			sources, err := mergeSources(valueNode, depth)
			if err != nil {
				return layering.Null(), err
			}
			merges = append(merges, sources...)
			continue
		}
		value, err := fromYAML(valueNode, depth+1)
		if err != nil {
			return layering.Null(), fmt.Errorf("%s: %w", keyNode.Value, err)
		}
		out.Set(keyNode.Value, value)
	}
	if len(merges) == 0 {
		return out, nil
	}
	// Earlier merge sources take precedence over later ones; explicit keys
	// override both.
	base := layering.NewMapping()
	for i := len(merges) - 1; i >= 0; i-- {
		for _, key := range merges[i].Keys() {
			value, _ := merges[i].Get(key)
			base.Set(key, value)
		}
	}
	for _, key := range out.Keys() {
		value, _ := out.Get(key)
		base.Set(key, value)
	}
	return base, nil
}

func mergeSources(node *yaml.Node, depth int) ([]layering.Node, error) {
	if node.Kind == yaml.SequenceNode {
		var sources []layering.Node
		for _, child := range node.Content {
			more, err := mergeSources(child, depth+1)
			if err != nil {
				return nil, err
			}
			sources = append(sources, more...)
		}
		return sources, nil
	}
	source, err := fromYAML(node, depth+1)
	if err != nil {
		return nil, err
	}
	if !source.IsMapping() {
		return nil, fmt.Errorf("merge key at line %d must reference a mapping", node.Line)
	}
	return []layering.Node{source}, nil
}

// EncodeYAML renders node as YAML keeping mapping order.
func EncodeYAML(node layering.Node) ([]byte, error) {
	root, err := toYAML(node)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return nil, fmt.Errorf("document: encode yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("document: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func toYAML(node layering.Node) (*yaml.Node, error) {
	switch node.Kind() {
	case layering.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case layering.KindMapping:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range node.Keys() {
			child, _ := node.Get(key)
			value, err := toYAML(child)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
		}
		return out, nil
	case layering.KindSequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if allScalars(node) {
			out.Style = yaml.FlowStyle
		}
		for _, item := range node.Items() {
			value, err := toYAML(item)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, value)
		}
		return out, nil
	default:
		return scalarToYAML(node.Value())
	}
}

func scalarToYAML(value any) (*yaml.Node, error) {
	switch typed := value.(type) {
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(typed)}, nil
	case float64:
		if math.IsInf(typed, 0) || math.IsNaN(typed) {
			out := &yaml.Node{}
			return out, out.Encode(typed)
		}
		text := strconv.FormatFloat(typed, 'f', -1, 64)
		if !strings.ContainsAny(text, ".e") {
			text += ".0"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}, nil
	default:
		out := &yaml.Node{}
		if err := out.Encode(typed); err != nil {
			return nil, fmt.Errorf("document: encode %T: %w", value, err)
		}
		return out, nil
	}
}

func allScalars(node layering.Node) bool {
	for _, item := range node.Items() {
		if item.IsMapping() || item.IsSequence() {
			return false
		}
	}
	return true
}
