// Package openapi publishes the settings of a scenario study as an OpenAPI
// document. Parameter types and defaults come from the baseline; the override
// catalog contributes the alternative values and the axes that set each
// parameter.
package openapi

import (
	"fmt"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/layering"
)

// Generator builds settings documents.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a Generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate describes baseline and the parameters catalog fragments set. catalog
// may be nil.
func (g *Generator) Generate(baseline layering.Node, catalog *scenarios.OverrideCatalog) (map[string]any, error) {
	if !baseline.IsNull() && !baseline.IsMapping() {
		return nil, fmt.Errorf("openapi: settings must be a mapping, got %s", baseline.Kind())
	}
	root := buildSchemaGraph(baseline, catalog, g.config.enums)
	return newDocumentBuilder(g.config, root).build()
}

// GenerateStudy is Generate over a loaded study.
func (g *Generator) GenerateStudy(study *scenarios.Study) (map[string]any, error) {
	if study == nil {
		return nil, scenarios.ErrStudyRequired
	}
	return g.Generate(study.Baseline, study.Catalog)
}
