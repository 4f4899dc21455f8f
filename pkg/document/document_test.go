package document

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-scenarios/layering"
)

func TestLoadYAMLKeepsOrderAndExpandsMergeKeys(t *testing.T) {
	node, err := Load(filepath.Join("testdata", "settings.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	wantKeys := []string{
		"model_year", "model_first_planning_year", "target_usd_year", "model_regions",
		"defaults", "aeo_fuel_scenarios", "carbon_cap", "utc_offset", "demand_response", "vintage",
	}
	if got := node.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Fatalf("key order mismatch:\nwant %v\n got %v", wantKeys, got)
	}

	fuels, _ := node.Get("aeo_fuel_scenarios")
	want := layering.NewMapping(
		layering.Entry{Key: "naturalgas", Value: layering.Scalar("reference")},
		layering.Entry{Key: "coal", Value: layering.Scalar("high_price")},
	)
	if !fuels.Equal(want) {
		t.Fatalf("merge key mismatch: %v", fuels.Native())
	}
	if got := fuels.Keys(); !reflect.DeepEqual(got, []string{"naturalgas", "coal"}) {
		t.Fatalf("merged keys should keep anchor order, got %v", got)
	}

	years, _ := node.Get("model_year")
	if first, ok := years.Index(0).Int(); !ok || first != 2030 {
		t.Fatalf("expected int 2030, got %#v", years.Index(0).Value())
	}
	if v, _ := node.Lookup("carbon_cap"); v.Value() != 42.5 {
		t.Fatalf("expected float carbon_cap, got %#v", v.Value())
	}
	if v, _ := node.Lookup("utc_offset"); v.Value() != -8 {
		t.Fatalf("expected int utc_offset, got %#v", v.Value())
	}
	if v, ok := node.Get("demand_response"); !ok || !v.IsNull() {
		t.Fatalf("expected explicit null, got %#v", v.Value())
	}
	if v, _ := node.Get("vintage"); v.Value() != "2021-03-04" {
		t.Fatalf("timestamps should stay as written, got %#v", v.Value())
	}
}

func TestLoadTOML(t *testing.T) {
	node, err := Load(filepath.Join("testdata", "settings.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := layering.MustFromNative(map[string]any{
		"target_usd_year": 2020,
		"model_year":      []any{2030, 2040},
		"input_folder":    "extra_inputs",
		"aeo_fuel_scenarios": map[string]any{
			"naturalgas": "reference",
			"coal":       "high_price",
		},
	})
	if !node.Equal(want) {
		t.Fatalf("toml mismatch: %v", node.Native())
	}
}

func TestLoadJSONCStripsComments(t *testing.T) {
	node, err := Load(filepath.Join("testdata", "settings.jsonc"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := node.Keys(); !reflect.DeepEqual(got, []string{"model_year", "model_regions", "aeo_fuel_scenarios"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	coal, ok := node.Lookup("aeo_fuel_scenarios.coal")
	if !ok || coal.String() != "reference" {
		t.Fatalf("expected coal reference, got %v", coal.Native())
	}
}

func TestLoadDirectoryMergesInLexicalOrder(t *testing.T) {
	node, err := Load(filepath.Join("testdata", "split"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := layering.NewMapping(
		layering.Entry{Key: "model_year", Value: layering.MustFromNative([]any{2030, 2040})},
		layering.Entry{Key: "aeo_fuel_scenarios", Value: layering.NewMapping(
			layering.Entry{Key: "naturalgas", Value: layering.Scalar("reference")},
			layering.Entry{Key: "coal", Value: layering.Scalar("high_price")},
		)},
		layering.Entry{Key: "model_regions", Value: layering.MustFromNative([]any{"WECC_CA"})},
	)
	if !node.Equal(want) {
		t.Fatalf("directory merge mismatch: %v", node.Native())
	}
}

func TestLoadDirRejectsNonMappingDocuments(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yml": {Data: []byte("model_year: [2030]\n")},
		"b.yml": {Data: []byte("- just\n- a list\n")},
	}
	_, err := LoadDir(fsys, DirectoryPattern)
	if err == nil || !strings.Contains(err.Error(), "must be a mapping") {
		t.Fatalf("expected mapping error, got %v", err)
	}
}

func TestLoadDirRequiresMatches(t *testing.T) {
	_, err := LoadDir(fstest.MapFS{"a.txt": {Data: []byte("x")}}, DirectoryPattern)
	if err == nil || !strings.Contains(err.Error(), "no files match") {
		t.Fatalf("expected no match error, got %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]Format{
		"settings.yml":   FormatYAML,
		"settings.YAML":  FormatYAML,
		"settings.toml":  FormatTOML,
		"settings.json":  FormatJSON,
		"settings.jsonc": FormatJSONC,
	}
	for path, want := range cases {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Fatalf("FormatOf(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatOf("settings.ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeEmptyDocumentIsNull(t *testing.T) {
	node, err := Decode(FormatYAML, []byte("  \n"))
	if err != nil || !node.IsNull() {
		t.Fatalf("expected null, got %v (%v)", node.Native(), err)
	}
}

func TestDecodeReportsSyntaxErrors(t *testing.T) {
	if _, err := Decode(FormatYAML, []byte("model_year: [2030\n")); err == nil {
		t.Fatalf("expected yaml syntax error")
	}
	if _, err := Decode(FormatTOML, []byte("model_year = [2030\n")); err == nil {
		t.Fatalf("expected toml syntax error")
	}
}

func TestEncodeYAMLRoundTrips(t *testing.T) {
	original, err := Load(filepath.Join("testdata", "settings.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	encoded, err := EncodeYAML(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(encoded), "model_year: [2030, 2040]") {
		t.Fatalf("expected flow style scalar lists, got:\n%s", encoded)
	}
	decoded, err := Decode(FormatYAML, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("round trip mismatch:\nwant %v\n got %v", original.Native(), decoded.Native())
	}
	if !reflect.DeepEqual(decoded.Keys(), original.Keys()) {
		t.Fatalf("round trip lost key order: %v", decoded.Keys())
	}
}

func TestEncodeYAMLKeepsNumericStringsQuoted(t *testing.T) {
	node := layering.NewMapping(
		layering.Entry{Key: "case_id", Value: layering.Scalar("2030")},
		layering.Entry{Key: "flag", Value: layering.Scalar("true")},
	)
	encoded, err := EncodeYAML(node)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(FormatYAML, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, _ := decoded.Get("case_id"); v.Value() != "2030" {
		t.Fatalf("expected string case id, got %#v", v.Value())
	}
	if v, _ := decoded.Get("flag"); v.Value() != "true" {
		t.Fatalf("expected string flag, got %#v", v.Value())
	}
}
