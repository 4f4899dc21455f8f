package scenarios

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-scenarios/layering"
)

// FieldDescriptor describes one parameter path and its inferred type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// DescribeParameters lists the leaf parameters of settings with their
// inferred types, sorted by path.
func DescribeParameters(settings layering.Node) []FieldDescriptor {
	descriptors := deriveFieldDescriptors(settings, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Path < descriptors[j].Path
	})
	return descriptors
}

// KnownParameters returns the set of parameter paths defined by the baseline,
// including intermediate mapping paths.
func KnownParameters(baseline layering.Node) map[string]struct{} {
	known := map[string]struct{}{}
	var walk func(node layering.Node, prefix string)
	walk = func(node layering.Node, prefix string) {
		for _, key := range node.Keys() {
			path := layering.JoinPath(prefix, key)
			known[path] = struct{}{}
			child, _ := node.Get(key)
			if child.IsMapping() {
				walk(child, path)
			}
		}
	}
	walk(baseline, "")
	return known
}

func deriveFieldDescriptors(node layering.Node, prefix string) []FieldDescriptor {
	switch node.Kind() {
	case layering.KindMapping:
		if node.Len() == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "mapping"}}
		}
		var fields []FieldDescriptor
		for _, key := range node.Keys() {
			child, _ := node.Get(key)
			fields = append(fields, deriveFieldDescriptors(child, layering.JoinPath(prefix, key))...)
		}
		return fields
	case layering.KindSequence:
		elementType := "any"
		if node.Len() > 0 {
			elementType = nodeTypeName(node.Index(0))
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: nodeTypeName(node)}}
	}
}

func nodeTypeName(node layering.Node) string {
	switch node.Kind() {
	case layering.KindNull:
		return "null"
	case layering.KindMapping:
		return "mapping"
	case layering.KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("%T", node.Value())
	}
}
