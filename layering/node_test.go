package layering

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCloneDetachesContainers(t *testing.T) {
	original := MustFromNative(map[string]any{
		"model_tag_names": []any{"THERM", "VRE"},
		"cost": map[string]any{
			"wacc_real": 0.05,
		},
	})

	clone := original.Clone()
	clone.SetPath("cost.wacc_real", Scalar(0.07))
	tags, _ := clone.Get("model_tag_names")
	tags.items[0] = Scalar("changed")

	if value, _ := original.Lookup("cost.wacc_real"); value.Value() != 0.05 {
		t.Fatalf("clone mutation leaked into original mapping: %v", value.Value())
	}
	if value, _ := original.Lookup("model_tag_names.0"); value.String() != "THERM" {
		t.Fatalf("clone mutation leaked into original sequence: %v", value.Value())
	}
}

func TestLookupWalksMappingsAndSequences(t *testing.T) {
	node := MustFromNative(map[string]any{
		"atb_new_gen": []any{
			[]any{"NaturalGas", "CCAvgCF", "Moderate", 500},
		},
		"model_regions": []any{"CA_N"},
	})

	value, ok := node.Lookup("atb_new_gen.0.3")
	if !ok {
		t.Fatalf("expected nested sequence lookup to succeed")
	}
	if size, ok := value.Int(); !ok || size != 500 {
		t.Fatalf("expected 500, got %v", value.Value())
	}
	if _, ok := node.Lookup("model_regions.4"); ok {
		t.Fatalf("expected out of range index to miss")
	}
	if _, ok := node.Lookup("model_regions.name"); ok {
		t.Fatalf("expected non numeric sequence segment to miss")
	}
}

func TestFromNativeSortsMapKeys(t *testing.T) {
	node := MustFromNative(map[string]any{"b": 1, "a": 2, "c": 3})
	if got := node.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected sorted keys, got %v", got)
	}
}

func TestFromNativeHandlesTypedContainers(t *testing.T) {
	node, err := FromNative(map[string][]int{"model_year": {2030, 2040}})
	if err != nil {
		t.Fatalf("FromNative: %v", err)
	}
	years, _ := node.Get("model_year")
	if years.Len() != 2 {
		t.Fatalf("expected two years, got %d", years.Len())
	}
	if year, ok := years.Index(1).Int(); !ok || year != 2040 {
		t.Fatalf("expected 2040, got %v", years.Index(1).Value())
	}
}

func TestJSONRoundTripPreservesOrder(t *testing.T) {
	raw := []byte(`{"zeta":1,"alpha":{"y":true,"x":[1.5,"two",null]}}`)
	var node Node
	if err := json.Unmarshal(raw, &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := node.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Fatalf("expected declaration order, got %v", got)
	}
	out, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("round trip mismatch:\nwant: %s\n got: %s", raw, out)
	}
}

func TestEqualComparesNumbersByValue(t *testing.T) {
	if !Scalar(1).Equal(Scalar(1.0)) {
		t.Fatalf("expected int and float64 of equal value to compare equal")
	}
	if Scalar("1").Equal(Scalar(1)) {
		t.Fatalf("expected string and int to differ")
	}
	a := MustFromNative(map[string]any{"x": 1, "y": 2})
	b := NewMapping(Entry{Key: "y", Value: Scalar(2)}, Entry{Key: "x", Value: Scalar(1)})
	if !a.Equal(b) {
		t.Fatalf("expected key order to be irrelevant for equality")
	}
}

func TestPathsListsLeaves(t *testing.T) {
	node := NewMapping(
		Entry{Key: "aeo_fuel_scenarios", Value: NewMapping(
			Entry{Key: "naturalgas", Value: Scalar("reference")},
			Entry{Key: "coal", Value: Scalar("reference")},
		)},
		Entry{Key: "model_year", Value: Sequence(Scalar(2030))},
		Entry{Key: "empty", Value: NewMapping()},
	)
	want := []string{"aeo_fuel_scenarios.naturalgas", "aeo_fuel_scenarios.coal", "model_year", "empty"}
	if got := node.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected paths:\nwant: %v\n got: %v", want, got)
	}
}

func TestSetOnNullCreatesMapping(t *testing.T) {
	var node Node
	node.Set("model_year", Scalar(2030))
	if !node.IsMapping() || node.Len() != 1 {
		t.Fatalf("expected single key mapping, got kind=%v len=%d", node.Kind(), node.Len())
	}
	if !node.Delete("model_year") || node.Len() != 0 {
		t.Fatalf("expected Delete to remove key")
	}
}
