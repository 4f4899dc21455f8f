package scenarios

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goliatone/go-scenarios/layering"
	"github.com/goliatone/go-scenarios/pkg/activity"
)

// NoneValue is the axis value meaning "no alternative selected".
const NoneValue = "none"

// CodeSchema marks malformed planning period parameters.
const CodeSchema = "schema"

// Validator checks a study and its resolved configs for structural and
// cross reference problems. It never fails: every finding is returned as an
// Issue.
type Validator struct {
	known         map[string]struct{}
	emissionAxes  []string
	ignoredValues map[string]struct{}
	strictValues  bool
	evaluator     Evaluator
	engineOpts    []EngineOption
	logger        EvaluatorLogger
	emitter       *activity.Emitter
}

// ValidatorOption customises a Validator.
type ValidatorOption func(*Validator)

// WithKnownParameters registers dot paths fragments may add even though the
// baseline does not define them. Children of a known path are known too.
func WithKnownParameters(paths ...string) ValidatorOption {
	return func(v *Validator) {
		for _, path := range paths {
			if path = strings.TrimSpace(path); path != "" {
				v.known[path] = struct{}{}
			}
		}
	}
}

// WithEmissionAxes names the axes whose values constrain emissions. A case
// selecting a value other than none on one of them must reference a policy
// file.
func WithEmissionAxes(axes ...string) ValidatorOption {
	return func(v *Validator) {
		v.emissionAxes = append(v.emissionAxes, axes...)
	}
}

// WithIgnoredValues lists axis values never reported as unmatched.
func WithIgnoredValues(values ...string) ValidatorOption {
	return func(v *Validator) {
		for _, value := range values {
			v.ignoredValues[value] = struct{}{}
		}
	}
}

// WithStrictValueNames reports selected values that match no fragment as
// errors instead of warnings.
func WithStrictValueNames(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strictValues = strict
	}
}

// WithRuleEvaluator sets the evaluator used by rules that name no engine.
func WithRuleEvaluator(evaluator Evaluator) ValidatorOption {
	return func(v *Validator) {
		v.evaluator = evaluator
	}
}

// WithFunctionRegistry exposes custom functions to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) ValidatorOption {
	return func(v *Validator) {
		v.engineOpts = append(v.engineOpts, EngineWithFunctionRegistry(registry))
	}
}

// WithProgramCache shares compiled rule programs across validation runs.
func WithProgramCache(cache ProgramCache) ValidatorOption {
	return func(v *Validator) {
		v.engineOpts = append(v.engineOpts, EngineWithProgramCache(cache))
	}
}

// WithEvaluatorLogger receives one event per rule evaluation.
func WithEvaluatorLogger(logger EvaluatorLogger) ValidatorOption {
	return func(v *Validator) {
		if logger == nil {
			v.logger = noopEvaluatorLogger{}
			return
		}
		v.logger = logger
	}
}

// WithIssueHooks emits one activity event per issue found.
func WithIssueHooks(hooks activity.Hooks) ValidatorOption {
	return func(v *Validator) {
		v.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true, Channel: ActivityChannel})
	}
}

// NewValidator constructs a Validator. Rule expressions get the default
// planning helpers unless a registry is supplied.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		known:         map[string]struct{}{},
		ignoredValues: map[string]struct{}{},
		logger:        noopEvaluatorLogger{},
		engineOpts:    []EngineOption{EngineWithFunctionRegistry(DefaultFunctionRegistry())},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate runs every check over study and result. result may be nil, in
// which case only the study level checks run.
func (v *Validator) Validate(ctx context.Context, study *Study, result *Result) Issues {
	if ctx == nil {
		ctx = context.Background()
	}
	if study == nil {
		return Issues{{Severity: SeverityError, Code: CodeSchema, Message: ErrStudyRequired.Error(), Err: ErrStudyRequired}}
	}

	var issues Issues
	issues = append(issues, v.checkDuplicateRows(study)...)
	issues = append(issues, v.checkPlanningPeriods(study, result)...)
	issues = append(issues, v.checkUnknownParameters(study)...)
	issues = append(issues, v.checkSelections(study)...)
	if result != nil {
		issues = append(issues, v.checkEmissionPolicies(study, result)...)
		if ctx.Err() == nil {
			issues = append(issues, v.checkRules(study, result)...)
		}
	}
	issues.Sort()

	if v.emitter.Enabled() {
		for _, issue := range issues {
			_ = v.emitter.Emit(ctx, activity.BuildValidationIssueEvent(activity.IssueEventInput{
				Case:     activity.CaseContext{CaseID: issue.CaseID, PlanningYear: issue.PlanningYear},
				Code:     issue.Code,
				Severity: string(issue.Severity),
				Path:     issue.Path,
				Message:  issue.Message,
			}))
		}
	}
	return issues
}

func (v *Validator) checkDuplicateRows(study *Study) Issues {
	var issues Issues
	first := map[RowKey]int{}
	for i, row := range study.Table.Rows {
		key := row.Key()
		idx, ok := first[key]
		if !ok {
			first[key] = i
			continue
		}
		err := &DuplicateRowError{Key: key, First: idx, Row: i}
		issues = append(issues, Issue{
			Severity:     SeverityError,
			Code:         CodeDuplicateRow,
			CaseID:       key.CaseID,
			PlanningYear: key.PlanningYear,
			Message:      err.Error(),
			Err:          err,
		})
	}
	return issues
}

func (v *Validator) checkPlanningPeriods(study *Study, result *Result) Issues {
	var issues Issues
	_, baselineErr := PlanningPeriods(study.Baseline)
	if issue, ok := planningPeriodIssue(baselineErr); ok {
		issues = append(issues, issue)
	}
	if result == nil || baselineErr != nil {
		return issues
	}
	result.Each(func(config *ResolvedConfig) bool {
		_, err := PlanningPeriods(config.Settings)
		if issue, ok := planningPeriodIssue(err); ok {
			issue.CaseID = config.CaseID
			issue.PlanningYear = config.PlanningYear
			issues = append(issues, issue)
		}
		return true
	})
	return issues
}

func planningPeriodIssue(err error) (Issue, bool) {
	if err == nil {
		return Issue{}, false
	}
	issue := Issue{Severity: SeverityError, Code: CodeSchema, Message: err.Error(), Err: err}
	var shapeErr *ShapeMismatchError
	if errors.As(err, &shapeErr) {
		issue.Code = CodePlanningPeriodShape
		issue.Path = shapeErr.Param
		return issue, true
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		issue.Path = schemaErr.Param
	}
	return issue, true
}

func (v *Validator) checkUnknownParameters(study *Study) Issues {
	var issues Issues
	study.Catalog.Each(func(key FragmentKey, fragment layering.Node) bool {
		for _, path := range v.unknownPaths(fragment, study.Baseline, "") {
			issues = append(issues, Issue{
				Severity:     SeverityWarning,
				Code:         CodeUnknownParameter,
				PlanningYear: key.PlanningYear,
				Path:         path,
				Message:      fmt.Sprintf("fragment %s sets %q which the baseline does not define", key, path),
			})
		}
		return true
	})
	return issues
}

// unknownPaths returns the first path on each fragment branch missing from
// baseline.
func (v *Validator) unknownPaths(fragment, baseline layering.Node, prefix string) []string {
	var out []string
	for _, key := range fragment.Keys() {
		path := layering.JoinPath(prefix, key)
		if v.isKnown(path) {
			continue
		}
		baseValue, ok := baseline.Get(key)
		if !ok {
			out = append(out, path)
			continue
		}
		value, _ := fragment.Get(key)
		if value.IsMapping() && baseValue.IsMapping() {
			out = append(out, v.unknownPaths(value, baseValue, path)...)
		}
	}
	return out
}

func (v *Validator) isKnown(path string) bool {
	for {
		if _, ok := v.known[path]; ok {
			return true
		}
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return false
		}
		path = path[:idx]
	}
}

func (v *Validator) checkSelections(study *Study) Issues {
	var issues Issues
	reportedAxes := map[string]struct{}{}
	severity := SeverityWarning
	if v.strictValues {
		severity = SeverityError
	}
	for _, row := range study.Table.Rows {
		for _, axis := range sortedAxes(row.Selections) {
			value, ok := row.Selection(axis)
			if !ok {
				continue
			}
			if _, ignored := v.ignoredValues[value]; ignored {
				continue
			}
			if !study.Catalog.AxisDeclared(axis) {
				if _, seen := reportedAxes[axis]; seen {
					continue
				}
				reportedAxes[axis] = struct{}{}
				issues = append(issues, Issue{
					Severity: SeverityInfo,
					Code:     CodeUnknownAxis,
					Path:     axis,
					Message:  fmt.Sprintf("axis %q has no fragments in the override catalog", axis),
				})
				continue
			}
			if study.Catalog.ValueDeclared(axis, value) {
				continue
			}
			issues = append(issues, Issue{
				Severity:     severity,
				Code:         CodeUnmatchedValue,
				CaseID:       row.CaseID,
				PlanningYear: row.PlanningYear,
				Path:         axis,
				Message:      fmt.Sprintf("value %q of axis %q matches no fragment in any planning year", value, axis),
			})
		}
	}
	return issues
}

func (v *Validator) checkEmissionPolicies(study *Study, result *Result) Issues {
	var issues Issues
	result.Each(func(config *ResolvedConfig) bool {
		constrained, axis := v.emissionConstrained(config)
		fileNode, _ := config.Lookup(EmissionPoliciesKey)
		fileName := strings.TrimSpace(fileNode.String())

		if fileName == "" {
			if constrained {
				issues = append(issues, Issue{
					Severity:     SeverityWarning,
					Code:         CodeEmissionPolicyReference,
					CaseID:       config.CaseID,
					PlanningYear: config.PlanningYear,
					Path:         EmissionPoliciesKey,
					Message:      fmt.Sprintf("case selects %s=%s but sets no %s", axis, config.Selections[axis], EmissionPoliciesKey),
				})
			}
			return true
		}
		if study.Policies == nil || (len(v.emissionAxes) > 0 && !constrained) {
			return true
		}
		table, ok := study.Policies.Table(fileName)
		if !ok {
			table, ok = study.Policies.Table(filepath.Base(fileName))
		}
		if !ok {
			issues = append(issues, Issue{
				Severity:     SeverityError,
				Code:         CodeEmissionPolicyReference,
				CaseID:       config.CaseID,
				PlanningYear: config.PlanningYear,
				Path:         EmissionPoliciesKey,
				Message:      fmt.Sprintf("emission policy file %q is not in the policy catalog", fileName),
				Err:          &UnresolvedReferenceError{Kind: "policy_file", Name: fileName, Reason: "not in the policy catalog"},
			})
			return true
		}
		if len(table.RowsFor(config.CaseID, config.PlanningYear)) == 0 {
			scope := "case " + config.CaseID
			if table.HasYearColumn() {
				scope = fmt.Sprintf("case %s in %d", config.CaseID, config.PlanningYear)
			}
			issues = append(issues, Issue{
				Severity:     SeverityError,
				Code:         CodeEmissionPolicyReference,
				CaseID:       config.CaseID,
				PlanningYear: config.PlanningYear,
				Path:         EmissionPoliciesKey,
				Message:      fmt.Sprintf("emission policy file %q has no rows for %s", fileName, scope),
				Err:          &UnresolvedReferenceError{Kind: "policy_case", Name: config.CaseID, Reason: "no rows in " + fileName},
			})
		}
		return true
	})
	return issues
}

func (v *Validator) emissionConstrained(config *ResolvedConfig) (bool, string) {
	for _, axis := range v.emissionAxes {
		value := strings.TrimSpace(config.Selections[axis])
		if value != "" && !strings.EqualFold(value, NoneValue) {
			return true, axis
		}
	}
	return false, ""
}

func (v *Validator) checkRules(study *Study, result *Result) Issues {
	if len(study.Rules) == 0 {
		return nil
	}
	var issues Issues
	set := compileRules(study.Rules, newEvaluatorPool(v.evaluator, v.engineOpts...), v.logger)
	for i, rule := range study.Rules {
		if err := set.errs[i]; err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeRuleError,
				Path:     rule.Name,
				Message:  err.Error(),
				Err:      err,
			})
			continue
		}
		result.Each(func(config *ResolvedConfig) bool {
			passed, err := set.check(i, config.RuleContext())
			switch {
			case err != nil:
				issues = append(issues, Issue{
					Severity:     SeverityError,
					Code:         CodeRuleError,
					CaseID:       config.CaseID,
					PlanningYear: config.PlanningYear,
					Path:         rule.Name,
					Message:      err.Error(),
					Err:          err,
				})
			case !passed:
				message := rule.Message
				if message == "" {
					message = fmt.Sprintf("rule %s failed: %s", rule.Name, rule.Expr)
				}
				severity := rule.Severity
				if severity == "" {
					severity = SeverityError
				}
				issues = append(issues, Issue{
					Severity:     severity,
					Code:         CodeRule,
					CaseID:       config.CaseID,
					PlanningYear: config.PlanningYear,
					Path:         rule.Name,
					Message:      message,
				})
			}
			return true
		})
	}
	return issues
}

func sortedAxes(selections map[string]string) []string {
	axes := make([]string, 0, len(selections))
	for axis := range selections {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	return axes
}
