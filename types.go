package scenarios

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-scenarios/layering"
)

const (
	// AllYears is the planning year of fragments that apply to every year.
	AllYears = 0

	// DefaultCatalogKey names the settings section holding the override catalog.
	DefaultCatalogKey = "settings_management"
	// AllYearsKey names the catalog section applied before year sections.
	AllYearsKey = "all_years"
	// RulesKey names the settings section holding validation rules.
	RulesKey = "validation_rules"

	ModelYearKey         = "model_year"
	FirstPlanningYearKey = "model_first_planning_year"
	EmissionPoliciesKey  = "emission_policies_fn"

	// ScenarioBinding is the expression variable carrying case metadata.
	ScenarioBinding = "scenario"
)

// PlanningPeriod is an investment horizon. Techno-economic parameters are
// averaged over [FirstPlanningYear, ModelYear].
type PlanningPeriod struct {
	ModelYear         int `json:"model_year"`
	FirstPlanningYear int `json:"first_planning_year"`
}

// Contains reports whether year falls inside the period.
func (p PlanningPeriod) Contains(year int) bool {
	return year >= p.FirstPlanningYear && year <= p.ModelYear
}

func (p PlanningPeriod) String() string {
	return fmt.Sprintf("%d-%d", p.FirstPlanningYear, p.ModelYear)
}

// RowKey identifies one (case_id, planning_year) pair.
type RowKey struct {
	CaseID       string `json:"case_id"`
	PlanningYear int    `json:"planning_year"`
}

func (k RowKey) String() string {
	return fmt.Sprintf("%s/%d", k.CaseID, k.PlanningYear)
}

// ScenarioRow selects, for one case and planning year, a named value per axis.
type ScenarioRow struct {
	CaseID       string            `json:"case_id"`
	PlanningYear int               `json:"planning_year"`
	Selections   map[string]string `json:"selections,omitempty"`
}

// Key returns the row identity.
func (r ScenarioRow) Key() RowKey {
	return RowKey{CaseID: r.CaseID, PlanningYear: r.PlanningYear}
}

// Selection returns the value selected for axis. Blank cells are no selection.
func (r ScenarioRow) Selection(axis string) (string, bool) {
	value, ok := r.Selections[axis]
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// ScenarioTable is the row-oriented scenario definition input.
type ScenarioTable struct {
	Axes []string      `json:"axes"`
	Rows []ScenarioRow `json:"rows"`
}

// Years returns the distinct planning years in ascending order.
func (t ScenarioTable) Years() []int {
	seen := map[int]struct{}{}
	var years []int
	for _, row := range t.Rows {
		if _, ok := seen[row.PlanningYear]; ok {
			continue
		}
		seen[row.PlanningYear] = struct{}{}
		years = append(years, row.PlanningYear)
	}
	sort.Ints(years)
	return years
}

// Duplicates returns every repeated (case_id, planning_year) occurrence after
// the first, in table order.
func (t ScenarioTable) Duplicates() []RowKey {
	seen := make(map[RowKey]struct{}, len(t.Rows))
	var out []RowKey
	for _, row := range t.Rows {
		key := row.Key()
		if _, ok := seen[key]; ok {
			out = append(out, key)
			continue
		}
		seen[key] = struct{}{}
	}
	return out
}

// FragmentKey addresses one override fragment.
type FragmentKey struct {
	PlanningYear int    `json:"planning_year"`
	Axis         string `json:"axis"`
	Value        string `json:"value"`
}

func (k FragmentKey) String() string {
	if k.PlanningYear == AllYears {
		return fmt.Sprintf("%s/%s=%s", AllYearsKey, k.Axis, k.Value)
	}
	return fmt.Sprintf("%d/%s=%s", k.PlanningYear, k.Axis, k.Value)
}

// AppliedOverride records one fragment merged into a resolved config.
type AppliedOverride struct {
	Axis       string        `json:"axis"`
	Value      string        `json:"value"`
	Fragment   layering.Node `json:"fragment"`
	Parameters []string      `json:"parameters"`
}

// Label renders the override as axis=value.
func (a AppliedOverride) Label() string {
	return a.Axis + "=" + a.Value
}

// ResolvedConfig is the merged configuration of one case in one planning year.
// It is owned by that pair and never shared with other results.
type ResolvedConfig struct {
	CaseID       string            `json:"case_id"`
	PlanningYear int               `json:"planning_year"`
	Period       *PlanningPeriod   `json:"period,omitempty"`
	Selections   map[string]string `json:"selections,omitempty"`
	Settings     layering.Node     `json:"settings"`
	Applied      []AppliedOverride `json:"applied,omitempty"`
}

// Key returns the (case_id, planning_year) identity.
func (c *ResolvedConfig) Key() RowKey {
	return RowKey{CaseID: c.CaseID, PlanningYear: c.PlanningYear}
}

// Lookup returns the resolved value at a dot separated path.
func (c *ResolvedConfig) Lookup(path string) (layering.Node, bool) {
	if c == nil {
		return layering.Null(), false
	}
	return c.Settings.Lookup(path)
}

// Rule is a user supplied validation expression evaluated per resolved config.
// A rule passes when the expression yields true.
type Rule struct {
	Name     string   `json:"name"`
	Expr     string   `json:"expr"`
	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Engine   string   `json:"engine,omitempty"`
}

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot     any
	CaseID       string
	PlanningYear int
	Period       *PlanningPeriod
	Now          *time.Time
	Args         map[string]any
	Metadata     map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) caseLabel() string {
	if ctx.CaseID == "" {
		return "unknown"
	}
	if ctx.PlanningYear == 0 {
		return ctx.CaseID
	}
	return RowKey{CaseID: ctx.CaseID, PlanningYear: ctx.PlanningYear}.String()
}

func (ctx RuleContext) caseBinding() map[string]any {
	if ctx.CaseID == "" && ctx.PlanningYear == 0 {
		return nil
	}
	binding := map[string]any{
		"case_id":       ctx.CaseID,
		"planning_year": ctx.PlanningYear,
	}
	if ctx.Period != nil {
		binding["model_year"] = ctx.Period.ModelYear
		binding["first_planning_year"] = ctx.Period.FirstPlanningYear
	}
	return binding
}

// environment flattens the context into expression variables. Snapshot keys
// are exposed at the top level; case metadata lives under "scenario".
func (ctx RuleContext) environment() map[string]any {
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	if binding := ctx.caseBinding(); binding != nil {
		env[ScenarioBinding] = binding
	}
	return env
}

func snapshotAsMap(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case layering.Node:
		if typed.IsMapping() {
			return typed.NativeMap()
		}
	}
	return map[string]any{}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
