package scenarios

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema indicates a missing or malformed required parameter.
	ErrSchema = errors.New("scenarios: schema error")
	// ErrShapeMismatch indicates paired planning-period lists of different length.
	ErrShapeMismatch = errors.New("scenarios: shape mismatch")
	// ErrUnresolvedReference indicates a structurally invalid reference, such as a
	// planning year the baseline does not declare.
	ErrUnresolvedReference = errors.New("scenarios: unresolved reference")
	// ErrDuplicateRow indicates a repeated (case_id, planning_year) row.
	ErrDuplicateRow = errors.New("scenarios: duplicate row")
	// ErrStudyRequired indicates Resolve or Validate received a nil study.
	ErrStudyRequired = errors.New("scenarios: study is required")
)

// SchemaError reports a required parameter that is missing or has the wrong
// shape.
type SchemaError struct {
	Param  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("scenarios: schema: parameter %q is required", e.Param)
	}
	return fmt.Sprintf("scenarios: schema: parameter %q %s", e.Param, e.Reason)
}

// Is matches ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// ShapeMismatchError reports paired sequence parameters of different lengths.
type ShapeMismatchError struct {
	Param    string
	Len      int
	Other    string
	OtherLen int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("scenarios: shape mismatch: %s has %d entries but %s has %d", e.Param, e.Len, e.Other, e.OtherLen)
}

// Is matches ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// UnresolvedReferenceError reports a reference that cannot be satisfied.
type UnresolvedReferenceError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("scenarios: unresolved %s %q: %s", e.Kind, e.Name, e.Reason)
}

// Is matches ErrUnresolvedReference.
func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

// DuplicateRowError reports a scenario row repeating an earlier row's key.
// Row indexes are zero based positions in the scenario table.
type DuplicateRowError struct {
	Key   RowKey
	First int
	Row   int
}

func (e *DuplicateRowError) Error() string {
	return fmt.Sprintf("scenarios: duplicate row %s (rows %d and %d)", e.Key, e.First, e.Row)
}

// Is matches ErrDuplicateRow.
func (e *DuplicateRowError) Is(target error) bool {
	return target == ErrDuplicateRow
}

// RowError attaches scenario row context to a resolution failure.
type RowError struct {
	Row          int
	CaseID       string
	PlanningYear int
	Err          error
}

func (e *RowError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scenarios: case %s year %d: %v", e.CaseID, e.PlanningYear, e.Err)
}

func (e *RowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Key returns the failing row identity.
func (e *RowError) Key() RowKey {
	return RowKey{CaseID: e.CaseID, PlanningYear: e.PlanningYear}
}
