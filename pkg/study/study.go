// Package study assembles a scenarios.Study from a settings file and the
// tables it references. Every file is read and closed before Load returns.
package study

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/internal/hydrate"
	"github.com/goliatone/go-scenarios/layering"
	"github.com/goliatone/go-scenarios/pkg/document"
	"github.com/goliatone/go-scenarios/pkg/tabular"
)

const (
	InputFolderKey         = "input_folder"
	ScenarioDefinitionsKey = "scenario_definitions_fn"
)

// Files are the input locations named by the settings document.
type Files struct {
	InputFolder         string `json:"input_folder"`
	ScenarioDefinitions string `json:"scenario_definitions_fn"`
	EmissionPolicies    string `json:"emission_policies_fn"`
}

// Option adjusts how a study is loaded.
type Option func(*loadConfig)

type loadConfig struct {
	catalogKey    string
	scenarioPath  string
	policyDir     string
	policyPattern string
	readOptions   []tabular.ReadOption
}

// WithCatalogKey names the settings section holding the override catalog.
func WithCatalogKey(key string) Option {
	return func(cfg *loadConfig) {
		cfg.catalogKey = key
	}
}

// WithScenarioDefinitions reads the scenario table from path instead of the
// file named by scenario_definitions_fn.
func WithScenarioDefinitions(path string) Option {
	return func(cfg *loadConfig) {
		cfg.scenarioPath = path
	}
}

// WithPolicyDir loads every policy table under dir matching pattern instead of
// only the files the settings reference.
func WithPolicyDir(dir, pattern string) Option {
	return func(cfg *loadConfig) {
		cfg.policyDir = dir
		cfg.policyPattern = pattern
	}
}

// WithReadOptions forwards options to the table readers.
func WithReadOptions(opts ...tabular.ReadOption) Option {
	return func(cfg *loadConfig) {
		cfg.readOptions = append(cfg.readOptions, opts...)
	}
}

// Load reads the settings at settingsPath and every table it references.
func Load(settingsPath string, opts ...Option) (*scenarios.Study, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	doc, err := document.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	baseline, catalog, rules, err := scenarios.SplitDocument(doc, cfg.catalogKey)
	if err != nil {
		return nil, fmt.Errorf("study: %s: %w", settingsPath, err)
	}
	files, err := hydrate.NewDecoder[Files]().Decode(hydrate.Context{}, baseline)
	if err != nil {
		return nil, fmt.Errorf("study: %w", err)
	}
	inputDir := InputDir(settingsPath, files)

	scenarioPath := cfg.scenarioPath
	if scenarioPath == "" {
		if files.ScenarioDefinitions == "" {
			return nil, &scenarios.SchemaError{Param: ScenarioDefinitionsKey, Reason: "is required"}
		}
		scenarioPath = filepath.Join(inputDir, files.ScenarioDefinitions)
	}
	table, err := tabular.ReadScenarioTable(scenarioPath, cfg.readOptions...)
	if err != nil {
		return nil, fmt.Errorf("study: %w", err)
	}

	var policies *scenarios.PolicyCatalog
	if cfg.policyDir != "" {
		policies, err = tabular.LoadPolicyCatalog(cfg.policyDir, cfg.policyPattern)
	} else {
		policies, err = referencedPolicies(inputDir, baseline, catalog, cfg.readOptions)
	}
	if err != nil {
		return nil, fmt.Errorf("study: %w", err)
	}

	return &scenarios.Study{
		Baseline: baseline,
		Catalog:  catalog,
		Table:    table,
		Policies: policies,
		Rules:    rules,
	}, nil
}

// InputDir returns the folder relative input files are read from: input_folder
// resolved against the settings location, or that location itself.
func InputDir(settingsPath string, files Files) string {
	base := settingsPath
	if info, err := os.Stat(settingsPath); err != nil || !info.IsDir() {
		base = filepath.Dir(settingsPath)
	}
	if files.InputFolder == "" {
		return base
	}
	if filepath.IsAbs(files.InputFolder) {
		return files.InputFolder
	}
	return filepath.Join(base, files.InputFolder)
}

// PolicyFiles lists the emission policy files named by the baseline or any
// catalog fragment, sorted.
func PolicyFiles(baseline layering.Node, catalog *scenarios.OverrideCatalog) []string {
	seen := map[string]struct{}{}
	collect := func(node layering.Node) {
		name, ok := node.Lookup(scenarios.EmissionPoliciesKey)
		if ok && !name.IsNull() && !name.IsMapping() && !name.IsSequence() && name.String() != "" {
			seen[name.String()] = struct{}{}
		}
	}
	collect(baseline)
	catalog.Each(func(_ scenarios.FragmentKey, fragment layering.Node) bool {
		collect(fragment)
		return true
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing files are left out of the catalog; the validator reports cases
// that reference them.
func referencedPolicies(inputDir string, baseline layering.Node, catalog *scenarios.OverrideCatalog, opts []tabular.ReadOption) (*scenarios.PolicyCatalog, error) {
	names := PolicyFiles(baseline, catalog)
	if len(names) == 0 {
		return nil, nil
	}
	tables := make([]*scenarios.PolicyTable, 0, len(names))
	for _, name := range names {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(inputDir, name)
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		table, err := tabular.ReadPolicyTable(path, opts...)
		if err != nil {
			return nil, err
		}
		table.Name = name
		tables = append(tables, table)
	}
	return scenarios.NewPolicyCatalog(tables...), nil
}
