package scenarios

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError reports a validation rule that failed to compile or run.
type EvaluationError struct {
	Engine string
	Rule   string
	Expr   string
	// Case is case/year, empty for compile failures.
	Case string
	Err  error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("scenarios: ")
	if e.Rule != "" {
		fmt.Fprintf(&b, "rule %q ", e.Rule)
	}
	fmt.Fprintf(&b, "(%s", e.Engine)
	if e.Expr != "" {
		fmt.Fprintf(&b, " %q", e.Expr)
	}
	b.WriteString(")")
	if e.Case != "" {
		fmt.Fprintf(&b, " on %s", e.Case)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapEvaluatorError tags engine-level failures that carry no expression.
func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "scenarios:") {
		return err
	}
	return fmt.Errorf("scenarios: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches rule metadata to err. An existing
// EvaluationError keeps its fields and only has the blanks filled.
func wrapEvaluationError(engine, expr, caseLabel string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Case: caseLabel, Err: err}
	}
	fill(&evalErr.Engine, engine)
	fill(&evalErr.Expr, expr)
	fill(&evalErr.Case, caseLabel)
	return evalErr
}

// withRule names the rule behind err when err is an EvaluationError.
func withRule(err error, name string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		fill(&evalErr.Rule, name)
	}
	return err
}

func fill(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
