package scenarios

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-scenarios/layering"
	"github.com/goliatone/go-scenarios/pkg/activity"
)

// ActivityChannel is the default channel stamped on emitted activity events.
const ActivityChannel = "scenarios"

// Resolver expands a study into one resolved configuration per
// (case_id, planning_year) row of its scenario table.
type Resolver struct {
	workers  int
	logger   ResolutionLogger
	emitter  *activity.Emitter
	required []string
	stamp    bool
	runID    string
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithWorkers bounds the number of rows resolved concurrently. Values below
// one select GOMAXPROCS.
func WithWorkers(n int) ResolverOption {
	return func(r *Resolver) {
		r.workers = n
	}
}

// WithResolutionLogger receives one event per resolved or failed row.
func WithResolutionLogger(logger ResolutionLogger) ResolverOption {
	return func(r *Resolver) {
		if logger == nil {
			r.logger = noopResolutionLogger{}
			return
		}
		r.logger = logger
	}
}

// WithActivityHooks fans resolution events out to hooks.
func WithActivityHooks(hooks activity.Hooks) ResolverOption {
	return func(r *Resolver) {
		r.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true, Channel: ActivityChannel})
	}
}

// WithRequiredParameters lists dot paths every resolved config must carry.
// A row whose merged settings miss one fails with a SchemaError.
func WithRequiredParameters(paths ...string) ResolverOption {
	return func(r *Resolver) {
		for _, path := range paths {
			if path = strings.TrimSpace(path); path != "" {
				r.required = append(r.required, path)
			}
		}
	}
}

// WithPlanningPeriodStamp replaces model_year and model_first_planning_year in
// each resolved config with the scalar values of the row's own period.
func WithPlanningPeriodStamp(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.stamp = enabled
	}
}

// WithRunID fixes the identifier reported for a resolution run.
func WithRunID(id string) ResolverOption {
	return func(r *Resolver) {
		r.runID = strings.TrimSpace(id)
	}
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{logger: noopResolutionLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

type rowOutcome struct {
	config   *ResolvedConfig
	err      error
	duration time.Duration
}

// Resolve expands every row of the study's scenario table. Failing rows are
// collected in Result.Failures while other rows continue. The returned error
// is reserved for a missing study or a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, study *Study) (*Result, error) {
	if study == nil {
		return nil, ErrStudyRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	periods, periodErr := PlanningPeriods(study.Baseline)
	rows := study.Table.Rows
	outcomes := make([]rowOutcome, len(rows))

	first := make(map[RowKey]int, len(rows))
	for i, row := range rows {
		key := row.Key()
		if idx, ok := first[key]; ok {
			outcomes[i].err = &DuplicateRowError{Key: key, First: idx, Row: i}
			continue
		}
		first[key] = i
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for i := range rows {
		if outcomes[i].err != nil {
			continue
		}
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			start := time.Now()
			config, err := r.resolveRow(study, periods, periodErr, rows[i])
			outcomes[i] = rowOutcome{config: config, err: err, duration: time.Since(start)}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := newResult(runID, len(rows))
	for i, row := range rows {
		outcome := outcomes[i]
		event := ResolutionLogEvent{
			RunID:        runID,
			CaseID:       row.CaseID,
			PlanningYear: row.PlanningYear,
			Duration:     outcome.duration,
		}
		if outcome.err != nil {
			rowErr := &RowError{Row: i, CaseID: row.CaseID, PlanningYear: row.PlanningYear, Err: outcome.err}
			result.addFailure(rowErr)
			event.Err = rowErr
			r.logger.LogResolution(event)
			r.emit(ctx, activity.BuildCaseFailedEvent(activity.CaseEventInput{
				RunID: runID,
				Case:  caseContext(row),
				Err:   outcome.err,
			}))
			continue
		}
		result.add(outcome.config)
		event.Applied = appliedLabels(outcome.config.Applied)
		r.logger.LogResolution(event)
		r.emit(ctx, activity.BuildCaseResolvedEvent(activity.CaseEventInput{
			RunID:   runID,
			Case:    caseContext(row),
			Applied: event.Applied,
		}))
	}
	return result, nil
}

// ResolveRow expands a single row against study. Duplicate detection needs the
// whole table and is only performed by Resolve.
func (r *Resolver) ResolveRow(study *Study, row ScenarioRow) (*ResolvedConfig, error) {
	if study == nil {
		return nil, ErrStudyRequired
	}
	periods, periodErr := PlanningPeriods(study.Baseline)
	return r.resolveRow(study, periods, periodErr, row)
}

func (r *Resolver) resolveRow(study *Study, periods []PlanningPeriod, periodErr error, row ScenarioRow) (*ResolvedConfig, error) {
	if periodErr != nil {
		return nil, periodErr
	}
	var period *PlanningPeriod
	if len(periods) > 0 {
		match, ok := PeriodFor(periods, row.PlanningYear)
		if !ok {
			return nil, &UnresolvedReferenceError{
				Kind:   "planning_year",
				Name:   strconv.Itoa(row.PlanningYear),
				Reason: "not declared by " + ModelYearKey,
			}
		}
		period = &match
	}

	settings := study.Baseline.Clone()
	if settings.IsNull() {
		settings = layering.NewMapping()
	}

	var applied []AppliedOverride
	for _, axis := range study.Catalog.Axes(row.PlanningYear) {
		value, ok := row.Selection(axis)
		if !ok {
			continue
		}
		fragment, ok := study.Catalog.fragment(row.PlanningYear, axis, value)
		if !ok {
			continue
		}
		layering.MergeInto(&settings, fragment)
		applied = append(applied, AppliedOverride{
			Axis:       axis,
			Value:      value,
			Fragment:   fragment.Clone(),
			Parameters: fragment.Paths(),
		})
	}

	if r.stamp && period != nil {
		settings.Set(ModelYearKey, layering.Scalar(period.ModelYear))
		settings.Set(FirstPlanningYearKey, layering.Scalar(period.FirstPlanningYear))
	}

	for _, path := range r.required {
		value, ok := settings.Lookup(path)
		if !ok || value.IsNull() {
			return nil, &SchemaError{Param: path}
		}
	}

	return &ResolvedConfig{
		CaseID:       row.CaseID,
		PlanningYear: row.PlanningYear,
		Period:       period,
		Selections:   selectedValues(row),
		Settings:     settings,
		Applied:      applied,
	}, nil
}

func (r *Resolver) emit(ctx context.Context, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	// Hook failures never fail a row.
	_ = r.emitter.Emit(ctx, event)
}

func selectedValues(row ScenarioRow) map[string]string {
	out := make(map[string]string, len(row.Selections))
	for axis := range row.Selections {
		if value, ok := row.Selection(axis); ok {
			out[axis] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func appliedLabels(applied []AppliedOverride) []string {
	if len(applied) == 0 {
		return nil
	}
	labels := make([]string, len(applied))
	for i, override := range applied {
		labels[i] = override.Label()
	}
	return labels
}

func caseContext(row ScenarioRow) activity.CaseContext {
	return activity.CaseContext{
		CaseID:       row.CaseID,
		PlanningYear: row.PlanningYear,
		Selections:   selectedValues(row),
	}
}
