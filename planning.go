package scenarios

import (
	"github.com/goliatone/go-scenarios/layering"
)

// PlanningPeriods reads the planning periods declared by settings. Both
// model_year and model_first_planning_year accept a single integer or a list
// of integers; lists must have equal length. A settings tree declaring neither
// returns no periods and no error.
func PlanningPeriods(settings layering.Node) ([]PlanningPeriod, error) {
	modelNode, hasModel := settings.Get(ModelYearKey)
	firstNode, hasFirst := settings.Get(FirstPlanningYearKey)
	hasModel = hasModel && !modelNode.IsNull()
	hasFirst = hasFirst && !firstNode.IsNull()

	switch {
	case !hasModel && !hasFirst:
		return nil, nil
	case !hasModel:
		return nil, &SchemaError{Param: ModelYearKey, Reason: "is required when " + FirstPlanningYearKey + " is set"}
	case !hasFirst:
		return nil, &SchemaError{Param: FirstPlanningYearKey, Reason: "is required when " + ModelYearKey + " is set"}
	}

	modelYears, err := yearList(ModelYearKey, modelNode)
	if err != nil {
		return nil, err
	}
	firstYears, err := yearList(FirstPlanningYearKey, firstNode)
	if err != nil {
		return nil, err
	}
	if len(modelYears) != len(firstYears) {
		return nil, &ShapeMismatchError{
			Param:    ModelYearKey,
			Len:      len(modelYears),
			Other:    FirstPlanningYearKey,
			OtherLen: len(firstYears),
		}
	}

	periods := make([]PlanningPeriod, len(modelYears))
	for i := range modelYears {
		periods[i] = PlanningPeriod{ModelYear: modelYears[i], FirstPlanningYear: firstYears[i]}
	}
	return periods, nil
}

// PeriodFor returns the period whose model year equals year.
func PeriodFor(periods []PlanningPeriod, year int) (PlanningPeriod, bool) {
	for _, period := range periods {
		if period.ModelYear == year {
			return period, true
		}
	}
	return PlanningPeriod{}, false
}

// YearWindow returns the earliest first planning year and the latest model
// year across periods.
func YearWindow(periods []PlanningPeriod) (start, end int, ok bool) {
	for i, period := range periods {
		if i == 0 || period.FirstPlanningYear < start {
			start = period.FirstPlanningYear
		}
		if i == 0 || period.ModelYear > end {
			end = period.ModelYear
		}
	}
	return start, end, len(periods) > 0
}

func yearList(param string, node layering.Node) ([]int, error) {
	if !node.IsSequence() {
		year, ok := node.Int()
		if !ok {
			return nil, &SchemaError{Param: param, Reason: "must be an integer or a list of integers"}
		}
		return []int{year}, nil
	}
	years := make([]int, 0, node.Len())
	for _, item := range node.Items() {
		year, ok := item.Int()
		if !ok {
			return nil, &SchemaError{Param: param, Reason: "must contain only integers"}
		}
		years = append(years, year)
	}
	return years, nil
}
