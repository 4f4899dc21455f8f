package activity

import (
	"fmt"
	"strings"
	"time"
)

// Event verbs and object types emitted by scenario resolution.
const (
	VerbCaseResolved    = "scenario.case.resolved"
	VerbCaseFailed      = "scenario.case.failed"
	VerbValidationIssue = "scenario.validation.issue"

	ObjectCase  = "scenario.case"
	ObjectIssue = "scenario.issue"
)

// CaseContext identifies the (case_id, planning_year) pair an event is about.
type CaseContext struct {
	CaseID       string
	PlanningYear int
	Selections   map[string]string
}

// ObjectID renders the pair as case/year.
func (c CaseContext) ObjectID() string {
	caseID := strings.TrimSpace(c.CaseID)
	if caseID == "" {
		return ""
	}
	if c.PlanningYear == 0 {
		return caseID
	}
	return fmt.Sprintf("%s/%d", caseID, c.PlanningYear)
}

// CaseEventInput describes the fields of case lifecycle events.
type CaseEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	RunID      string
	Case       CaseContext
	Applied    []string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// IssueEventInput describes a validation finding.
type IssueEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	RunID      string
	Case       CaseContext
	Code       string
	Severity   string
	Path       string
	Message    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildCaseResolvedEvent reports a successfully resolved case.
func BuildCaseResolvedEvent(input CaseEventInput) Event {
	metadata := caseMetadata(input)
	if len(input.Applied) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["applied"] = append([]string{}, input.Applied...)
	}
	return caseEvent(VerbCaseResolved, input, metadata)
}

// BuildCaseFailedEvent reports a case whose resolution failed.
func BuildCaseFailedEvent(input CaseEventInput) Event {
	metadata := caseMetadata(input)
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}
	return caseEvent(VerbCaseFailed, input, metadata)
}

// BuildValidationIssueEvent reports one validation finding. Study level
// issues carry no case and are keyed by code and path.
func BuildValidationIssueEvent(input IssueEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["code"] = input.Code
	metadata["severity"] = input.Severity
	metadata["message"] = input.Message
	if input.Path != "" {
		metadata["path"] = input.Path
	}
	if input.RunID != "" {
		metadata["run_id"] = input.RunID
	}
	if input.Case.CaseID != "" {
		metadata["case_id"] = input.Case.CaseID
		metadata["planning_year"] = input.Case.PlanningYear
	}

	objectID := input.Case.ObjectID()
	if objectID == "" {
		objectID = strings.Trim(input.Code+":"+input.Path, ":")
	}
	if objectID == "" {
		objectID = ObjectIssue
	}
	return Event{
		Verb:       VerbValidationIssue,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectIssue,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func caseMetadata(input CaseEventInput) map[string]any {
	metadata := cloneMap(input.Metadata)
	if input.RunID != "" {
		metadata = ensureMetadata(metadata)
		metadata["run_id"] = input.RunID
	}
	if input.Case.CaseID != "" {
		metadata = ensureMetadata(metadata)
		metadata["case_id"] = input.Case.CaseID
		metadata["planning_year"] = input.Case.PlanningYear
	}
	if len(input.Case.Selections) > 0 {
		metadata = ensureMetadata(metadata)
		selections := make(map[string]any, len(input.Case.Selections))
		for axis, value := range input.Case.Selections {
			selections[axis] = value
		}
		metadata["selections"] = selections
	}
	return metadata
}

func caseEvent(verb string, input CaseEventInput, metadata map[string]any) Event {
	objectID := input.Case.ObjectID()
	if objectID == "" {
		objectID = strings.TrimSpace(input.RunID)
	}
	if objectID == "" {
		objectID = ObjectCase
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectCase,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
