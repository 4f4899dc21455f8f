package scenarios

import (
	"encoding/json"

	"github.com/goliatone/go-scenarios/layering"
)

// BaselineLayer labels the baseline entry of a trace.
const BaselineLayer = "baseline"

// Trace captures where the resolved value at a path came from: the baseline
// followed by every applied override, weakest first.
type Trace struct {
	CaseID       string       `json:"case_id"`
	PlanningYear int          `json:"planning_year"`
	Path         string       `json:"path"`
	Value        any          `json:"value,omitempty"`
	Found        bool         `json:"found"`
	Layers       []Provenance `json:"layers"`
}

// Provenance details how one layer contributed to a traced path.
type Provenance struct {
	Layer string `json:"layer"`
	Axis  string `json:"axis,omitempty"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
	// Effective marks the layer whose value survived the merge.
	Effective bool `json:"effective"`
}

// Trace reports the provenance of path in c. baseline must be the tree c was
// resolved from.
func (c *ResolvedConfig) Trace(baseline layering.Node, path string) Trace {
	trace := Trace{CaseID: c.CaseID, PlanningYear: c.PlanningYear, Path: path}
	if value, ok := c.Settings.Lookup(path); ok {
		trace.Found = true
		trace.Value = value.Native()
	}

	effective := -1
	value, found := baseline.Lookup(path)
	trace.Layers = append(trace.Layers, provenance(BaselineLayer, "", value, found))
	if found {
		effective = 0
	}
	for _, override := range c.Applied {
		if !layering.Touches(override.Fragment, path) {
			trace.Layers = append(trace.Layers, Provenance{Layer: override.Label(), Axis: override.Axis})
			continue
		}
		value, found := override.Fragment.Lookup(path)
		trace.Layers = append(trace.Layers, provenance(override.Label(), override.Axis, value, found))
		// A fragment replacing an ancestor drops the baseline value even when it
		// does not carry the path itself.
		effective = len(trace.Layers) - 1
		if !found {
			effective = -1
		}
	}
	if effective >= 0 && trace.Found {
		trace.Layers[effective].Effective = true
	}
	return trace
}

func provenance(layer, axis string, value layering.Node, found bool) Provenance {
	entry := Provenance{Layer: layer, Axis: axis, Found: found}
	if found {
		entry.Value = value.Native()
	}
	return entry
}

// ToJSON serialises the trace.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
