package openapi

import (
	"fmt"
	"regexp"
	"strings"
)

const componentPrefix = "#/components/schemas/"

// componentRegistry publishes object shapes that occur more than once in the
// settings tree, plus any pinned root, under components.schemas.
type componentRegistry struct {
	uses    map[string]int
	byShape map[string]*component
	names   map[string]struct{}
}

type component struct {
	name   string
	schema map[string]any
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		uses:    map[string]int{},
		byShape: map[string]*component{},
		names:   map[string]struct{}{},
	}
}

// count records every object shape below node.
func (r *componentRegistry) count(node *schemaNode) {
	if node == nil {
		return
	}
	if shareable(node) {
		r.uses[node.Digest()]++
	}
	for _, name := range sortedKeys(node.Properties) {
		r.count(node.Properties[name])
	}
	r.count(node.Items)
}

func (r *componentRegistry) shared(node *schemaNode) bool {
	return shareable(node) && r.uses[node.Digest()] > 1
}

// lookup returns the component already published for node's shape.
func (r *componentRegistry) lookup(node *schemaNode) (*component, bool) {
	entry, ok := r.byShape[node.Digest()]
	return entry, ok
}

// publish claims a name derived from hint for node's shape. The caller fills
// the schema once the reference exists, so shapes nested in themselves
// terminate.
func (r *componentRegistry) publish(hint string, node *schemaNode) *component {
	entry := &component{name: r.claim(hint)}
	r.byShape[node.Digest()] = entry
	return entry
}

func (r *componentRegistry) schemas() map[string]any {
	if len(r.byShape) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.byShape))
	for _, entry := range r.byShape {
		out[entry.name] = entry.schema
	}
	return out
}

func (r *componentRegistry) claim(hint string) string {
	base := componentName(hint)
	name := base
	for suffix := 2; ; suffix++ {
		if _, taken := r.names[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s%d", base, suffix)
	}
	r.names[name] = struct{}{}
	return name
}

func (c *component) ref() map[string]any {
	return map[string]any{"$ref": componentPrefix + c.name}
}

func shareable(node *schemaNode) bool {
	return node != nil && node.Type == "object" && len(node.Properties) > 0
}

var nameSeparators = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// componentName turns a settings path such as "settings.aeo_fuel_scenarios"
// into SettingsAeoFuelScenarios.
func componentName(hint string) string {
	var b strings.Builder
	for _, part := range nameSeparators.Split(hint, -1) {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	name := b.String()
	switch {
	case name == "":
		return "Schema"
	case name[0] >= '0' && name[0] <= '9':
		return "_" + name
	}
	return name
}
