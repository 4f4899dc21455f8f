package scenarios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-scenarios/layering"
	"github.com/goliatone/go-scenarios/pkg/activity"
)

func TestResolverFixtures(t *testing.T) {
	type expectValue struct {
		CaseID       string        `json:"case_id"`
		PlanningYear int           `json:"planning_year"`
		Path         string        `json:"path"`
		Value        layering.Node `json:"value"`
		Absent       bool          `json:"absent"`
	}
	type expectFailure struct {
		CaseID       string `json:"case_id"`
		PlanningYear int    `json:"planning_year"`
		Error        string `json:"error"`
	}
	type testCase struct {
		Name     string          `json:"name"`
		Baseline layering.Node   `json:"baseline"`
		Catalog  layering.Node   `json:"catalog"`
		Rows     []ScenarioRow   `json:"rows"`
		Expect   []expectValue   `json:"expect"`
		Failures []expectFailure `json:"failures"`
	}
	type fixture struct {
		Description string     `json:"description"`
		Cases       []testCase `json:"cases"`
	}

	fx := loadFixture[fixture](t, "resolve_cases.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			catalog, err := CatalogFromNode(tc.Catalog)
			if err != nil {
				t.Fatalf("catalog: %v", err)
			}
			study := &Study{Baseline: tc.Baseline, Catalog: catalog, Table: ScenarioTable{Rows: tc.Rows}}

			result, err := NewResolver().Resolve(context.Background(), study)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}

			for _, want := range tc.Expect {
				config, ok := result.Get(want.PlanningYear, want.CaseID)
				if !ok {
					t.Fatalf("missing resolved config %s/%d (failures: %v)", want.CaseID, want.PlanningYear, result.Err())
				}
				got, found := config.Lookup(want.Path)
				if want.Absent {
					if found && !got.IsNull() && got.String() != "" {
						t.Fatalf("%s/%d: expected %s to be absent, got %v", want.CaseID, want.PlanningYear, want.Path, got.Native())
					}
					continue
				}
				if !found {
					t.Fatalf("%s/%d: expected %s to be set", want.CaseID, want.PlanningYear, want.Path)
				}
				if !got.Equal(want.Value) {
					t.Fatalf("%s/%d: %s mismatch\nwant: %v\n got: %v", want.CaseID, want.PlanningYear, want.Path, want.Value.Native(), got.Native())
				}
			}

			if len(result.Failures) != len(tc.Failures) {
				t.Fatalf("expected %d failures, got %d: %v", len(tc.Failures), len(result.Failures), result.Err())
			}
			for i, want := range tc.Failures {
				failure := result.Failures[i]
				if failure.CaseID != want.CaseID || failure.PlanningYear != want.PlanningYear {
					t.Fatalf("failure %d: expected %s/%d, got %s/%d", i, want.CaseID, want.PlanningYear, failure.CaseID, failure.PlanningYear)
				}
				if !strings.Contains(failure.Error(), want.Error) {
					t.Fatalf("failure %d: expected error containing %q, got %v", i, want.Error, failure)
				}
			}
		})
	}
}

func TestResolveEmptySelectionsCopiesBaseline(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = []ScenarioRow{{CaseID: "p1", PlanningYear: 2030}}

	result, err := NewResolver().Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	config, ok := result.Get(2030, "p1")
	if !ok {
		t.Fatalf("expected resolved config, failures: %v", result.Err())
	}
	if !config.Settings.Equal(study.Baseline) {
		t.Fatalf("expected baseline copy\nwant: %v\n got: %v", study.Baseline.Native(), config.Settings.Native())
	}
	if len(config.Applied) != 0 {
		t.Fatalf("expected no applied overrides, got %+v", config.Applied)
	}

	fuels, _ := config.Settings.Get("aeo_fuel_scenarios")
	fuels.Set("coal", layering.Scalar("mutated"))
	baselineCoal, _ := study.Baseline.Lookup("aeo_fuel_scenarios.coal")
	if baselineCoal.String() != "reference" {
		t.Fatalf("mutating a resolved config changed the baseline: %v", baselineCoal.Native())
	}
}

func TestResolveCasesDoNotShareState(t *testing.T) {
	study := fuelStudy(t)
	result, err := NewResolver(WithWorkers(4)).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	p2, _ := result.Get(2030, "p2")
	fuels, _ := p2.Settings.Get("aeo_fuel_scenarios")
	fuels.Set("naturalgas", layering.Scalar("mutated"))

	p1, _ := result.Get(2030, "p1")
	if value, _ := p1.Lookup("aeo_fuel_scenarios.naturalgas"); value.String() != "reference" {
		t.Fatalf("p1 observed p2 mutation: %v", value.Native())
	}
	fragment, _ := study.Catalog.Fragment(2030, "ng_price", "low")
	if value, _ := fragment.Lookup("aeo_fuel_scenarios.naturalgas"); value.String() != "high_resource" {
		t.Fatalf("catalog fragment mutated through a resolved config: %v", value.Native())
	}
	if value, _ := p2.Applied[0].Fragment.Lookup("aeo_fuel_scenarios.naturalgas"); value.String() != "high_resource" {
		t.Fatalf("applied fragment aliases resolved settings: %v", value.Native())
	}
}

func TestResolveLeavesUntouchedParameters(t *testing.T) {
	study := fuelStudy(t)
	result, err := NewResolver().Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	touched := map[string]struct{}{}
	study.Catalog.Each(func(_ FragmentKey, fragment layering.Node) bool {
		for _, path := range fragment.Paths() {
			touched[path] = struct{}{}
		}
		return true
	})

	result.Each(func(config *ResolvedConfig) bool {
		for _, path := range study.Baseline.Paths() {
			if _, ok := touched[path]; ok {
				continue
			}
			want, _ := study.Baseline.Lookup(path)
			got, ok := config.Lookup(path)
			if !ok || !got.Equal(want) {
				t.Fatalf("%s/%d: untouched %s changed: want %v got %v", config.CaseID, config.PlanningYear, path, want.Native(), got.Native())
			}
		}
		return true
	})
}

func TestResolveIsIdempotent(t *testing.T) {
	study := fuelStudy(t)
	resolver := NewResolver()

	first, err := resolver.Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.Len() != second.Len() {
		t.Fatalf("expected equal result sizes, got %d and %d", first.Len(), second.Len())
	}
	first.Each(func(config *ResolvedConfig) bool {
		again, ok := second.Get(config.PlanningYear, config.CaseID)
		if !ok || !again.Settings.Equal(config.Settings) {
			t.Fatalf("%s/%d differs between runs", config.CaseID, config.PlanningYear)
		}
		return true
	})

	row := study.Table.Rows[1]
	a, err := resolver.ResolveRow(study, row)
	if err != nil {
		t.Fatalf("resolve row: %v", err)
	}
	b, err := resolver.ResolveRow(study, row)
	if err != nil {
		t.Fatalf("resolve row: %v", err)
	}
	if !a.Settings.Equal(b.Settings) {
		t.Fatalf("ResolveRow is not idempotent")
	}
}

func TestResolveUnknownSelectionIsNoOp(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = []ScenarioRow{
		{CaseID: "p1", PlanningYear: 2030, Selections: map[string]string{"ng_price": "missing_value"}},
		{CaseID: "p2", PlanningYear: 2030, Selections: map[string]string{"unknown_axis": "anything"}},
		{CaseID: "p3", PlanningYear: 2040, Selections: map[string]string{"ng_price": "low"}},
	}
	result, err := NewResolver().Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Err() != nil {
		t.Fatalf("expected no failures, got %v", result.Err())
	}
	result.Each(func(config *ResolvedConfig) bool {
		fuels, _ := config.Lookup("aeo_fuel_scenarios")
		want, _ := study.Baseline.Get("aeo_fuel_scenarios")
		if !fuels.Equal(want) {
			t.Fatalf("%s/%d: expected baseline fuels, got %v", config.CaseID, config.PlanningYear, fuels.Native())
		}
		return true
	})
}

func TestResolveDuplicateRowsFailLaterOccurrence(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = append(study.Table.Rows, ScenarioRow{CaseID: "p2", PlanningYear: 2030})

	result, err := NewResolver().Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected one failure, got %v", result.Err())
	}
	failure := result.Failures[0]
	if !errors.Is(failure, ErrDuplicateRow) {
		t.Fatalf("expected ErrDuplicateRow, got %v", failure)
	}
	var dup *DuplicateRowError
	if !errors.As(failure, &dup) || dup.First != 1 || dup.Row != len(study.Table.Rows)-1 {
		t.Fatalf("unexpected duplicate detail %+v", dup)
	}
	config, _ := result.Get(2030, "p2")
	if value, _ := config.Lookup("aeo_fuel_scenarios.naturalgas"); value.String() != "high_resource" {
		t.Fatalf("first occurrence should win, got %v", value.Native())
	}
}

func TestResolveRequiredParameters(t *testing.T) {
	study := fuelStudy(t)
	result, err := NewResolver(WithRequiredParameters("aeo_fuel_scenarios.coal", "target_usd_year")).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("expected every row to fail, got %d resolved", result.Len())
	}
	for _, failure := range result.Failures {
		var schemaErr *SchemaError
		if !errors.As(failure, &schemaErr) || schemaErr.Param != "target_usd_year" {
			t.Fatalf("expected schema error for target_usd_year, got %v", failure)
		}
	}
}

func TestResolvePlanningPeriodStamp(t *testing.T) {
	study := fuelStudy(t)
	result, err := NewResolver(WithPlanningPeriodStamp(true)).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	config, _ := result.Get(2040, "p1")
	if config.Period == nil || config.Period.FirstPlanningYear != 2031 {
		t.Fatalf("expected 2031-2040 period, got %v", config.Period)
	}
	year, _ := config.Lookup(ModelYearKey)
	first, _ := config.Lookup(FirstPlanningYearKey)
	if got, _ := year.Int(); got != 2040 {
		t.Fatalf("expected stamped model_year 2040, got %v", year.Native())
	}
	if got, _ := first.Int(); got != 2031 {
		t.Fatalf("expected stamped first year 2031, got %v", first.Native())
	}
	if baseline, _ := study.Baseline.Get(ModelYearKey); !baseline.IsSequence() {
		t.Fatalf("stamping must not touch the baseline")
	}
}

func TestResolveReportsEventsInTableOrder(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = append(study.Table.Rows, ScenarioRow{CaseID: "p9", PlanningYear: 2050})

	var mu sync.Mutex
	var logged []string
	logger := ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		mu.Lock()
		defer mu.Unlock()
		status := "ok"
		if event.Err != nil {
			status = "failed"
		}
		logged = append(logged, fmt.Sprintf("%s/%d:%s", event.CaseID, event.PlanningYear, status))
	})
	capture := &activity.CaptureHook{}

	result, err := NewResolver(
		WithRunID("run-42"),
		WithResolutionLogger(logger),
		WithActivityHooks(activity.Hooks{capture}),
	).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.RunID != "run-42" {
		t.Fatalf("expected run id run-42, got %q", result.RunID)
	}

	want := []string{"p1/2030:ok", "p2/2030:ok", "p1/2040:ok", "p9/2050:failed"}
	if strings.Join(logged, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected log order %v", logged)
	}
	verbs := capture.Verbs()
	if len(verbs) != 4 || verbs[3] != activity.VerbCaseFailed || verbs[0] != activity.VerbCaseResolved {
		t.Fatalf("unexpected verbs %v", verbs)
	}
	events := capture.Snapshot()
	if events[1].ObjectID != "p2/2030" || events[1].Metadata["run_id"] != "run-42" {
		t.Fatalf("unexpected event %+v", events[1])
	}
	if events[1].Channel != ActivityChannel {
		t.Fatalf("expected channel %q, got %q", ActivityChannel, events[1].Channel)
	}
}

func TestResolveManyRowsConcurrently(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = nil
	for i := 0; i < 200; i++ {
		selection := "reference"
		if i%2 == 1 {
			selection = "low"
		}
		study.Table.Rows = append(study.Table.Rows, ScenarioRow{
			CaseID:       fmt.Sprintf("c%03d", i),
			PlanningYear: 2030,
			Selections:   map[string]string{"ng_price": selection},
		})
	}

	result, err := NewResolver(WithWorkers(8)).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Len() != 200 {
		t.Fatalf("expected 200 configs, got %d", result.Len())
	}
	cases := result.Cases(2030)
	for i, caseID := range cases {
		if caseID != fmt.Sprintf("c%03d", i) {
			t.Fatalf("cases out of table order at %d: %s", i, caseID)
		}
		config, _ := result.Get(2030, caseID)
		gas, _ := config.Lookup("aeo_fuel_scenarios.naturalgas")
		want := "reference"
		if i%2 == 1 {
			want = "high_resource"
		}
		if gas.String() != want {
			t.Fatalf("%s: expected %s, got %s", caseID, want, gas.String())
		}
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewResolver().Resolve(ctx, fuelStudy(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResolveRequiresStudy(t *testing.T) {
	if _, err := NewResolver().Resolve(context.Background(), nil); !errors.Is(err, ErrStudyRequired) {
		t.Fatalf("expected ErrStudyRequired, got %v", err)
	}
	if _, err := NewResolver().ResolveRow(nil, ScenarioRow{}); !errors.Is(err, ErrStudyRequired) {
		t.Fatalf("expected ErrStudyRequired, got %v", err)
	}
}

func TestResultSummary(t *testing.T) {
	study := fuelStudy(t)
	study.Table.Rows = append(study.Table.Rows, ScenarioRow{CaseID: "p9", PlanningYear: 2050})
	result, err := NewResolver().Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	issues := Issues{{Severity: SeverityWarning, Code: CodeUnknownParameter, Message: "x"}}
	summary := result.Summary(issues)
	if summary.Rows != 4 || summary.Succeeded != 3 || summary.Failed != 1 || summary.Issues != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	text := summary.String()
	if !strings.Contains(text, "4 rows: 3 resolved, 1 failed, 1 issues") || !strings.Contains(text, "p9/2050") {
		t.Fatalf("unexpected summary text %q", text)
	}
	if years := result.Years(); len(years) != 2 || years[0] != 2030 || years[1] != 2040 {
		t.Fatalf("unexpected years %v", years)
	}
}

func BenchmarkResolve(b *testing.B) {
	builder := NewCatalogBuilder()
	for axis := 0; axis < 6; axis++ {
		for value := 0; value < 4; value++ {
			builder.Register(2030, fmt.Sprintf("axis_%d", axis), fmt.Sprintf("v%d", value), layering.MustFromNative(map[string]any{
				fmt.Sprintf("section_%d", axis): map[string]any{"value": value, "list": []any{value, value + 1}},
			}))
		}
	}
	catalog, err := builder.Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	baseline := map[string]any{"model_year": 2030, "model_first_planning_year": 2020}
	for axis := 0; axis < 20; axis++ {
		baseline[fmt.Sprintf("section_%d", axis)] = map[string]any{"value": 0, "list": []any{0, 1, 2}}
	}
	study := &Study{Baseline: layering.MustFromNative(baseline), Catalog: catalog}
	for i := 0; i < 64; i++ {
		selections := map[string]string{}
		for axis := 0; axis < 6; axis++ {
			selections[fmt.Sprintf("axis_%d", axis)] = fmt.Sprintf("v%d", (i+axis)%4)
		}
		study.Table.Rows = append(study.Table.Rows, ScenarioRow{CaseID: fmt.Sprintf("c%d", i), PlanningYear: 2030, Selections: selections})
	}

	resolver := NewResolver()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resolver.Resolve(context.Background(), study); err != nil {
			b.Fatalf("resolve: %v", err)
		}
	}
}

// fuelStudy has two planning periods, one axis with a 2030 fragment and three
// rows: p1 and p2 in 2030 and p1 in 2040.
func fuelStudy(t *testing.T) *Study {
	t.Helper()
	catalog, err := NewCatalogBuilder().
		Register(2030, "ng_price", "low", layering.MustFromNative(map[string]any{
			"aeo_fuel_scenarios": map[string]any{"naturalgas": "high_resource"},
		})).
		Build()
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return &Study{
		Baseline: layering.MustFromNative(map[string]any{
			"model_year":                []any{2030, 2040},
			"model_first_planning_year": []any{2020, 2031},
			"aeo_fuel_scenarios":        map[string]any{"naturalgas": "reference", "coal": "reference"},
			"model_regions":             []any{"WECC_CA", "WECC_NW"},
			"target_usd_year":           nil,
		}),
		Catalog: catalog,
		Table: ScenarioTable{
			Axes: []string{"ng_price"},
			Rows: []ScenarioRow{
				{CaseID: "p1", PlanningYear: 2030, Selections: map[string]string{"ng_price": "reference"}},
				{CaseID: "p2", PlanningYear: 2030, Selections: map[string]string{"ng_price": "low"}},
				{CaseID: "p1", PlanningYear: 2040, Selections: map[string]string{"ng_price": "low"}},
			},
		},
	}
}

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}
