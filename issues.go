package scenarios

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks validation findings.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// ParseSeverity maps a user supplied label to a Severity. Unknown labels are
// treated as errors.
func ParseSeverity(label string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "error", "err":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	default:
		return SeverityError, fmt.Errorf("scenarios: unknown severity %q", label)
	}
}

// Issue codes reported by the validator.
const (
	CodePlanningPeriodShape     = "planning_period_shape"
	CodeEmissionPolicyReference = "emission_policy_reference"
	CodeUnknownParameter        = "unknown_parameter"
	CodeDuplicateRow            = "duplicate_row"
	CodeUnmatchedValue          = "unmatched_value"
	CodeUnknownAxis             = "unknown_axis"
	CodeRule                    = "rule"
	CodeRuleError               = "rule_error"
)

// Issue is one structured validation finding.
type Issue struct {
	Severity     Severity `json:"severity"`
	Code         string   `json:"code"`
	CaseID       string   `json:"case_id,omitempty"`
	PlanningYear int      `json:"planning_year,omitempty"`
	Path         string   `json:"path,omitempty"`
	Message      string   `json:"message"`
	Err          error    `json:"-"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Severity))
	b.WriteString(" ")
	b.WriteString(i.Code)
	if i.CaseID != "" || i.PlanningYear != 0 {
		fmt.Fprintf(&b, " [%s/%d]", i.CaseID, i.PlanningYear)
	}
	if i.Path != "" {
		b.WriteString(" ")
		b.WriteString(i.Path)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// Issues is the validator output.
type Issues []Issue

// Fatal returns the issues at or above min severity. Callers use it to decide
// which findings abort a run.
func (is Issues) Fatal(min Severity) Issues {
	var out Issues
	for _, issue := range is {
		if issue.Severity.AtLeast(min) {
			out = append(out, issue)
		}
	}
	return out
}

// Max returns the highest severity present, or "" when empty.
func (is Issues) Max() Severity {
	var max Severity
	for _, issue := range is {
		if issue.Severity.rank() > max.rank() {
			max = issue.Severity
		}
	}
	return max
}

// ByCode returns the issues carrying code.
func (is Issues) ByCode(code string) Issues {
	var out Issues
	for _, issue := range is {
		if issue.Code == code {
			out = append(out, issue)
		}
	}
	return out
}

// Count tallies issues per severity.
func (is Issues) Count() map[Severity]int {
	counts := map[Severity]int{}
	for _, issue := range is {
		counts[issue.Severity]++
	}
	return counts
}

// Sort orders issues by planning year, case, code and path so reports are
// stable.
func (is Issues) Sort() {
	sort.SliceStable(is, func(a, b int) bool {
		left, right := is[a], is[b]
		if left.PlanningYear != right.PlanningYear {
			return left.PlanningYear < right.PlanningYear
		}
		if left.CaseID != right.CaseID {
			return left.CaseID < right.CaseID
		}
		if left.Code != right.Code {
			return left.Code < right.Code
		}
		return left.Path < right.Path
	})
}
