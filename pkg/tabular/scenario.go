package tabular

import (
	"fmt"
	"strconv"
	"strings"

	scenarios "github.com/goliatone/go-scenarios"
)

var (
	caseColumns = []string{"case_id"}
	yearColumns = []string{"year", "planning_year"}
)

// ReadScenarioTable reads a scenario definitions file. It needs a case_id and
// a year column; every other column is an axis, in header order.
func ReadScenarioTable(path string, opts ...ReadOption) (scenarios.ScenarioTable, error) {
	table, err := Read(path, opts...)
	if err != nil {
		return scenarios.ScenarioTable{}, err
	}
	out, err := ScenarioTableFrom(table)
	if err != nil {
		return scenarios.ScenarioTable{}, fmt.Errorf("tabular: %s: %w", path, err)
	}
	return out, nil
}

// ScenarioTableFrom converts a generic table into scenario rows.
func ScenarioTableFrom(table Table) (scenarios.ScenarioTable, error) {
	caseIdx := table.Column(caseColumns...)
	if caseIdx < 0 {
		return scenarios.ScenarioTable{}, &scenarios.SchemaError{Param: "scenario_definitions", Reason: "has no case_id column"}
	}
	yearIdx := table.Column(yearColumns...)
	if yearIdx < 0 {
		return scenarios.ScenarioTable{}, &scenarios.SchemaError{Param: "scenario_definitions", Reason: "has no year column"}
	}

	out := scenarios.ScenarioTable{}
	axisIdx := make([]int, 0, len(table.Header))
	for i, column := range table.Header {
		if i == caseIdx || i == yearIdx || column == "" {
			continue
		}
		out.Axes = append(out.Axes, column)
		axisIdx = append(axisIdx, i)
	}

	for line, record := range table.Records {
		caseID := cell(record, caseIdx)
		if caseID == "" {
			continue
		}
		year, err := parseYear(cell(record, yearIdx))
		if err != nil {
			return scenarios.ScenarioTable{}, fmt.Errorf("row %d (case %s): %w", line+2, caseID, err)
		}
		row := scenarios.ScenarioRow{
			CaseID:       caseID,
			PlanningYear: year,
			Selections:   make(map[string]string, len(axisIdx)),
		}
		for n, idx := range axisIdx {
			if value := cell(record, idx); value != "" {
				row.Selections[out.Axes[n]] = value
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Spreadsheets often store years as floats ("2030.0").
func parseYear(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("year is empty")
	}
	if year, err := strconv.Atoi(raw); err == nil {
		return year, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value != float64(int(value)) {
		return 0, fmt.Errorf("year %q is not an integer", raw)
	}
	return int(value), nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
