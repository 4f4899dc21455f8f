package logging

import (
	"context"

	"github.com/rs/zerolog"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/pkg/activity"
)

// ResolutionLogger writes resolver events to logger. Failed rows log at warn,
// resolved rows at debug.
func ResolutionLogger(logger zerolog.Logger) scenarios.ResolutionLogger {
	return scenarios.ResolutionLoggerFunc(func(event scenarios.ResolutionLogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("run_id", event.RunID).
			Str("case_id", event.CaseID).
			Int("planning_year", event.PlanningYear).
			Strs("applied", event.Applied).
			Dur("duration", event.Duration).
			Msg("scenario resolved")
	})
}

// EvaluatorLogger writes rule evaluations to logger.
func EvaluatorLogger(logger zerolog.Logger) scenarios.EvaluatorLogger {
	return scenarios.EvaluatorLoggerFunc(func(event scenarios.EvaluatorLogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("engine", event.Engine).
			Str("rule", event.Rule).
			Str("expr", event.Expr).
			Str("case", event.Case).
			Dur("duration", event.Duration).
			Msg("rule evaluated")
	})
}

// LogIssues writes validation issues at a level matching their severity.
func LogIssues(logger zerolog.Logger, issues scenarios.Issues) {
	for _, issue := range issues {
		var entry *zerolog.Event
		switch issue.Severity {
		case scenarios.SeverityError:
			entry = logger.Error()
		case scenarios.SeverityWarning:
			entry = logger.Warn()
		default:
			entry = logger.Info()
		}
		if issue.CaseID != "" {
			entry = entry.Str("case_id", issue.CaseID)
		}
		if issue.PlanningYear != 0 {
			entry = entry.Int("planning_year", issue.PlanningYear)
		}
		if issue.Path != "" {
			entry = entry.Str("path", issue.Path)
		}
		entry.Str("code", issue.Code).Msg(issue.Message)
	}
}

// ActivityHook logs activity events at debug level.
func ActivityHook(logger zerolog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		logger.Debug().
			Str("verb", event.Verb).
			Str("object_type", event.ObjectType).
			Str("object_id", event.ObjectID).
			Str("channel", event.Channel).
			Fields(event.Metadata).
			Msg("activity")
		return nil
	})
}
