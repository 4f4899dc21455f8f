package scenarios

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-scenarios/layering"
)

// Study bundles the inputs of one scenario study. It is loaded once, before
// resolution, and passed by reference to the Resolver and Validator. None of
// its parts are mutated after construction.
type Study struct {
	Baseline layering.Node
	Catalog  *OverrideCatalog
	Table    ScenarioTable
	Policies *PolicyCatalog
	Rules    []Rule
}

// Periods returns the planning periods declared by the baseline.
func (s *Study) Periods() ([]PlanningPeriod, error) {
	if s == nil {
		return nil, ErrStudyRequired
	}
	return PlanningPeriods(s.Baseline)
}

// YearWindow returns the span of years covered by the baseline planning
// periods. It is used to size data warehouse queries.
func (s *Study) YearWindow() (start, end int, ok bool) {
	periods, err := s.Periods()
	if err != nil {
		return 0, 0, false
	}
	return YearWindow(periods)
}

// SplitDocument separates a settings document into baseline values, the
// override catalog stored under catalogKey and the validation rules section.
// An empty catalogKey selects DefaultCatalogKey.
func SplitDocument(doc layering.Node, catalogKey string) (layering.Node, *OverrideCatalog, []Rule, error) {
	if catalogKey == "" {
		catalogKey = DefaultCatalogKey
	}
	if doc.IsNull() {
		doc = layering.NewMapping()
	}
	if !doc.IsMapping() {
		return layering.Null(), nil, nil, &SchemaError{Param: "settings", Reason: fmt.Sprintf("must be a mapping, got %s", doc.Kind())}
	}

	baseline := doc.Clone()
	catalogNode, _ := baseline.Get(catalogKey)
	baseline.Delete(catalogKey)
	rulesNode, _ := baseline.Get(RulesKey)
	baseline.Delete(RulesKey)

	catalog, err := CatalogFromNode(catalogNode)
	if err != nil {
		return layering.Null(), nil, nil, fmt.Errorf("%s: %w", catalogKey, err)
	}
	rules, err := RulesFromNode(rulesNode)
	if err != nil {
		return layering.Null(), nil, nil, err
	}
	return baseline, catalog, rules, nil
}

// RulesFromNode decodes a list of rule mappings with name, expr and optional
// message, severity and engine keys.
func RulesFromNode(node layering.Node) ([]Rule, error) {
	if node.IsNull() {
		return nil, nil
	}
	if !node.IsSequence() {
		return nil, &SchemaError{Param: RulesKey, Reason: "must be a list of rules"}
	}
	rules := make([]Rule, 0, node.Len())
	for i, item := range node.Items() {
		param := fmt.Sprintf("%s.%d", RulesKey, i)
		if !item.IsMapping() {
			return nil, &SchemaError{Param: param, Reason: "must be a mapping"}
		}
		rule := Rule{
			Name:    ruleField(item, "name"),
			Expr:    ruleField(item, "expr"),
			Message: ruleField(item, "message"),
			Engine:  strings.ToLower(ruleField(item, "engine")),
		}
		if rule.Expr == "" {
			return nil, &SchemaError{Param: param + ".expr", Reason: "is required"}
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule_%d", i+1)
		}
		severity, err := ParseSeverity(ruleField(item, "severity"))
		if err != nil {
			return nil, &SchemaError{Param: param + ".severity", Reason: err.Error()}
		}
		rule.Severity = severity
		rules = append(rules, rule)
	}
	return rules, nil
}

func ruleField(node layering.Node, key string) string {
	value, ok := node.Get(key)
	if !ok || value.IsNull() {
		return ""
	}
	return strings.TrimSpace(value.String())
}
