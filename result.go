package scenarios

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Result holds the outcome of one resolution run, indexed
// [planning_year][case_id].
type Result struct {
	RunID    string
	Configs  map[int]map[string]*ResolvedConfig
	Failures []*RowError
	Rows     int

	order []RowKey
}

func newResult(runID string, rows int) *Result {
	return &Result{
		RunID:   runID,
		Configs: map[int]map[string]*ResolvedConfig{},
		Rows:    rows,
		order:   make([]RowKey, 0, rows),
	}
}

func (r *Result) add(config *ResolvedConfig) {
	byCase, ok := r.Configs[config.PlanningYear]
	if !ok {
		byCase = map[string]*ResolvedConfig{}
		r.Configs[config.PlanningYear] = byCase
	}
	byCase[config.CaseID] = config
	r.order = append(r.order, config.Key())
}

func (r *Result) addFailure(err *RowError) {
	r.Failures = append(r.Failures, err)
}

// Get returns the resolved config for caseID in year.
func (r *Result) Get(year int, caseID string) (*ResolvedConfig, bool) {
	if r == nil {
		return nil, false
	}
	config, ok := r.Configs[year][caseID]
	return config, ok
}

// Years returns the planning years with at least one resolved config.
func (r *Result) Years() []int {
	if r == nil {
		return nil
	}
	years := make([]int, 0, len(r.Configs))
	for year := range r.Configs {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// Cases returns the case ids resolved for year in scenario table order.
func (r *Result) Cases(year int) []string {
	if r == nil {
		return nil
	}
	var cases []string
	for _, key := range r.order {
		if key.PlanningYear == year {
			cases = append(cases, key.CaseID)
		}
	}
	return cases
}

// Each visits resolved configs in scenario table order until fn returns false.
func (r *Result) Each(fn func(*ResolvedConfig) bool) {
	if r == nil || fn == nil {
		return
	}
	for _, key := range r.order {
		if !fn(r.Configs[key.PlanningYear][key.CaseID]) {
			return
		}
	}
}

// Len returns the number of resolved configs.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Err joins every row failure, or returns nil when all rows resolved.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, failure := range r.Failures {
		errs[i] = failure
	}
	return errors.Join(errs...)
}

// FailureSummary describes one failed row.
type FailureSummary struct {
	CaseID       string `json:"case_id"`
	PlanningYear int    `json:"planning_year"`
	Reason       string `json:"reason"`
}

// Summary reports the outcome of a run together with its validation issues.
type Summary struct {
	RunID      string           `json:"run_id"`
	Rows       int              `json:"rows"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Failures   []FailureSummary `json:"failures,omitempty"`
	Issues     int              `json:"issues"`
	BySeverity map[Severity]int `json:"by_severity,omitempty"`
}

// Summary tallies resolved rows, failed rows and issues.
func (r *Result) Summary(issues Issues) Summary {
	summary := Summary{
		Issues:     len(issues),
		BySeverity: issues.Count(),
	}
	if r == nil {
		return summary
	}
	summary.RunID = r.RunID
	summary.Rows = r.Rows
	summary.Succeeded = len(r.order)
	summary.Failed = len(r.Failures)
	for _, failure := range r.Failures {
		summary.Failures = append(summary.Failures, FailureSummary{
			CaseID:       failure.CaseID,
			PlanningYear: failure.PlanningYear,
			Reason:       failure.Err.Error(),
		})
	}
	return summary
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows: %d resolved, %d failed, %d issues", s.Rows, s.Succeeded, s.Failed, s.Issues)
	if s.Issues > 0 {
		fmt.Fprintf(&b, " (%d error, %d warning, %d info)",
			s.BySeverity[SeverityError], s.BySeverity[SeverityWarning], s.BySeverity[SeverityInfo])
	}
	for _, failure := range s.Failures {
		fmt.Fprintf(&b, "\n  %s/%d: %s", failure.CaseID, failure.PlanningYear, failure.Reason)
	}
	return b.String()
}
