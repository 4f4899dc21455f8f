package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-scenarios/layering"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_settings.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[studySettings](buildOptions(tc)...)
			ctx := Context{CaseID: tc.CaseID, PlanningYear: tc.PlanningYear}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded settings mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeRejectsNonMapping(t *testing.T) {
	decoder := NewDecoder[studySettings]()
	_, err := decoder.Decode(Context{CaseID: "p1", PlanningYear: 2030}, layering.Scalar("oops"))
	if err == nil || !strings.Contains(err.Error(), "must be a mapping") {
		t.Fatalf("expected mapping error, got %v", err)
	}
}

func TestDecodeLeavesInputUntouched(t *testing.T) {
	input := layering.MustFromNative(map[string]any{"model_year": 2030})
	decoder := NewDecoder[studySettings](WithPreHook[studySettings](scalarYearsPreHook))
	if _, err := decoder.Decode(Context{}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	year, _ := input.Get("model_year")
	if year.IsSequence() {
		t.Fatalf("pre-hook rewrote the caller's tree")
	}
}

func TestPostHookErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("boom")
	decoder := NewDecoder[studySettings](WithPostHook[studySettings](func(Context, *studySettings) error {
		return sentinel
	}))
	_, err := decoder.Decode(Context{CaseID: "p1", PlanningYear: 2030}, layering.NewMapping())
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[studySettings] {
	var options []DecoderOption[studySettings]

	for _, name := range tc.Options {
		switch name {
		case "use_number":
			options = append(options, WithUseNumber[studySettings]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[studySettings]())
		}
	}
	for _, name := range tc.PreHooks {
		if name == "scalar_years" {
			options = append(options, WithPreHook[studySettings](scalarYearsPreHook))
		}
	}
	for _, name := range tc.PostHooks {
		if name == "case_tag" {
			options = append(options, WithPostHook[studySettings](caseTagPostHook))
		}
	}
	if tc.CustomDecoder == "regions_only" {
		options = append(options, WithCustomDecoder[studySettings](regionsOnlyDecoder))
	}
	return options
}

func scalarYearsPreHook(_ Context, settings layering.Node) (layering.Node, error) {
	year, ok := settings.Get("model_year")
	if !ok || year.IsSequence() {
		return settings, nil
	}
	settings.Set("model_year", layering.Sequence(year))
	return settings, nil
}

func caseTagPostHook(ctx Context, settings *studySettings) error {
	if settings == nil {
		return errors.New("settings is nil")
	}
	settings.Tags = append(settings.Tags, fmt.Sprintf("%s/%d", ctx.CaseID, ctx.PlanningYear))
	return nil
}

func regionsOnlyDecoder(ctx Context, settings layering.Node) (studySettings, error) {
	regions, ok := settings.Get("model_regions")
	if !ok {
		return studySettings{}, fmt.Errorf("no model_regions for %s", ctx)
	}
	var out studySettings
	for _, region := range regions.Items() {
		out.Regions = append(out.Regions, region.String())
	}
	return out, nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name          string        `json:"name"`
	CaseID        string        `json:"caseId"`
	PlanningYear  int           `json:"planningYear"`
	Input         layering.Node `json:"input"`
	Expect        studySettings `json:"expect"`
	ExpectErr     string        `json:"expectErr"`
	PreHooks      []string      `json:"preHooks"`
	PostHooks     []string      `json:"postHooks"`
	Options       []string      `json:"options"`
	CustomDecoder string        `json:"customDecoder"`
}

type studySettings struct {
	ModelYear        []int             `json:"model_year,omitempty"`
	Regions          []string          `json:"model_regions,omitempty"`
	FuelScenarios    map[string]string `json:"aeo_fuel_scenarios,omitempty"`
	EmissionPolicies string            `json:"emission_policies_fn,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
