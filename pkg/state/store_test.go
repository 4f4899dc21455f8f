package state

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/layering"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ref     Ref
		want    string
		wantErr string
	}{
		{name: "valid", ref: Ref{Study: "western", CaseID: "p1", PlanningYear: 2030}, want: "western/2030/p1"},
		{name: "trims study", ref: Ref{Study: " western ", CaseID: "p1", PlanningYear: 2030}, want: "western/2030/p1"},
		{name: "missing study", ref: Ref{CaseID: "p1", PlanningYear: 2030}, wantErr: "study is required"},
		{name: "missing case", ref: Ref{Study: "western", PlanningYear: 2030}, wantErr: "case id is required"},
		{name: "slash in case", ref: Ref{Study: "western", CaseID: "a/b", PlanningYear: 2030}, wantErr: "must not contain"},
		{name: "zero year", ref: Ref{Study: "western", CaseID: "p1"}, wantErr: "planning year must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestStoresHonourETags(t *testing.T) {
	ctx := context.Background()
	sqlite, err := OpenSQLiteStore[map[string]any](ctx, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	stores := map[string]Store[map[string]any]{
		"memory": NewMemoryStore[map[string]any](),
		"sqlite": sqlite,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ref := Ref{Study: "western", CaseID: "p1", PlanningYear: 2030}

			if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
				t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
			}

			first, err := store.Save(ctx, ref, map[string]any{"fuel": "reference"}, Meta{SnapshotID: "run-1"})
			if err != nil {
				t.Fatalf("first save: %v", err)
			}
			if first.ETag != "v1" {
				t.Fatalf("expected etag v1, got %q", first.ETag)
			}
			if first.UpdatedAt.IsZero() {
				t.Fatalf("expected UpdatedAt to be stamped")
			}

			second, err := store.Save(ctx, ref, map[string]any{"fuel": "high"}, Meta{SnapshotID: "run-2", ETag: first.ETag})
			if err != nil {
				t.Fatalf("second save: %v", err)
			}
			if second.ETag != "v2" {
				t.Fatalf("expected etag v2, got %q", second.ETag)
			}

			_, err = store.Save(ctx, ref, map[string]any{"fuel": "low"}, Meta{ETag: first.ETag})
			if !errors.Is(err, ErrETagMismatch) {
				t.Fatalf("expected ErrETagMismatch, got %v", err)
			}

			snapshot, meta, ok, err := store.Load(ctx, ref)
			if err != nil || !ok {
				t.Fatalf("load: ok=%v err=%v", ok, err)
			}
			if snapshot["fuel"] != "high" {
				t.Fatalf("expected latest snapshot, got %v", snapshot)
			}
			if meta.SnapshotID != "run-2" || meta.ETag != "v2" {
				t.Fatalf("unexpected meta %+v", meta)
			}
		})
	}
}

func TestStoresRejectInvalidRef(t *testing.T) {
	store := NewMemoryStore[int]()
	if _, err := store.Save(context.Background(), Ref{Study: "western"}, 1, Meta{}); err == nil {
		t.Fatalf("expected invalid ref error")
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestSaveResultAndLoadCase(t *testing.T) {
	ctx := context.Background()
	result := resolveStudy(t)

	store := NewMemoryStore[scenarios.ResolvedConfig]()
	saved, err := SaveResult(ctx, store, "western", result)
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
	if saved != result.Len() || store.Len() != result.Len() {
		t.Fatalf("expected %d saved configs, got %d (store %d)", result.Len(), saved, store.Len())
	}

	config, meta, ok, err := LoadCase(ctx, store, Ref{Study: "western", CaseID: "p2", PlanningYear: 2030})
	if err != nil || !ok {
		t.Fatalf("load case: ok=%v err=%v", ok, err)
	}
	if meta.SnapshotID != "run-test" {
		t.Fatalf("expected run id as snapshot id, got %q", meta.SnapshotID)
	}
	if meta.Extra["applied"] != "aeo_fuel_scenarios=high_fuel" {
		t.Fatalf("unexpected applied extra %q", meta.Extra["applied"])
	}
	fuel, ok := config.Lookup("aeo_fuel_scenarios.coal")
	if !ok || fuel.String() != "high_price" {
		t.Fatalf("expected high_price coal scenario, got %v", fuel.Native())
	}

	if _, _, ok, err := LoadCase(ctx, store, Ref{Study: "western", CaseID: "p9", PlanningYear: 2030}); err != nil || ok {
		t.Fatalf("expected missing case, got ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreRoundTripsResolvedConfig(t *testing.T) {
	ctx := context.Background()
	result := resolveStudy(t)

	store, err := OpenSQLiteStore[scenarios.ResolvedConfig](ctx, filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer store.Close()

	if _, err := SaveResult(ctx, store, "western", result); err != nil {
		t.Fatalf("save result: %v", err)
	}

	want, _ := result.Get(2030, "p2")
	got, _, ok, err := LoadCase(ctx, store, Ref{Study: "western", CaseID: "p2", PlanningYear: 2030})
	if err != nil || !ok {
		t.Fatalf("load case: ok=%v err=%v", ok, err)
	}
	if !got.Settings.Equal(want.Settings) {
		t.Fatalf("settings differ after round trip:\nwant %v\n got %v", want.Settings.Native(), got.Settings.Native())
	}
	if len(got.Applied) != 1 || got.Applied[0].Label() != "aeo_fuel_scenarios=high_fuel" {
		t.Fatalf("unexpected applied overrides %+v", got.Applied)
	}

	refs, err := store.Refs(ctx, "western")
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if len(refs) != result.Len() {
		t.Fatalf("expected %d refs, got %d", result.Len(), len(refs))
	}
	if refs[0].PlanningYear != 2030 || refs[0].CaseID != "p1" {
		t.Fatalf("expected refs ordered by year and case, got %+v", refs)
	}
}

func TestSaveResultRequiresStore(t *testing.T) {
	if _, err := SaveResult(context.Background(), nil, "western", nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func resolveStudy(t *testing.T) *scenarios.Result {
	t.Helper()

	builder := scenarios.NewCatalogBuilder()
	builder.Register(2030, "aeo_fuel_scenarios", "high_fuel", layering.MustFromNative(map[string]any{
		"aeo_fuel_scenarios": map[string]any{"coal": "high_price"},
	}))
	catalog, err := builder.Build()
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	study := &scenarios.Study{
		Baseline: layering.MustFromNative(map[string]any{
			"model_year":                []any{2030, 2040},
			"model_first_planning_year": []any{2020, 2031},
			"aeo_fuel_scenarios":        map[string]any{"coal": "reference", "naturalgas": "reference"},
		}),
		Catalog: catalog,
		Table: scenarios.ScenarioTable{
			Axes: []string{"aeo_fuel_scenarios"},
			Rows: []scenarios.ScenarioRow{
				{CaseID: "p1", PlanningYear: 2030, Selections: map[string]string{"aeo_fuel_scenarios": "reference"}},
				{CaseID: "p2", PlanningYear: 2030, Selections: map[string]string{"aeo_fuel_scenarios": "high_fuel"}},
				{CaseID: "p1", PlanningYear: 2040},
			},
		},
	}

	result, err := scenarios.NewResolver(scenarios.WithRunID("run-test")).Resolve(context.Background(), study)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Err() != nil {
		t.Fatalf("unexpected row failures: %v", result.Err())
	}
	return result
}
