package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
)

type traceFlags struct {
	studyFlags
	caseID string
	year   int
}

func newTraceCmd(a *app) *cobra.Command {
	flags := &traceFlags{}
	cmd := &cobra.Command{
		Use:   "trace SETTINGS PATH",
		Short: "Show which layers set a parameter for one case and year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := a.loadStudy(args[0], flags.studyFlags)
			if err != nil {
				return err
			}
			row, ok := findRow(loaded.Table, flags.caseID, flags.year)
			if !ok {
				return fmt.Errorf("no scenario row for %s/%d", flags.caseID, flags.year)
			}
			config, err := a.newResolver(1, "").ResolveRow(loaded, row)
			if err != nil {
				return err
			}
			payload, err := config.Trace(loaded.Baseline, args[1]).ToJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.caseID, "case", "", "Case id to trace")
	cmd.Flags().IntVar(&flags.year, "year", 0, "Planning year to trace")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func findRow(table scenarios.ScenarioTable, caseID string, year int) (scenarios.ScenarioRow, bool) {
	for _, row := range table.Rows {
		if row.CaseID == caseID && row.PlanningYear == year {
			return row, true
		}
	}
	return scenarios.ScenarioRow{}, false
}
