package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
)

type validateFlags struct {
	studyFlags
	jsonOutput bool
}

func newValidateCmd(a *app) *cobra.Command {
	flags := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate SETTINGS",
		Short: "Resolve the study and report validation issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loaded, err := a.loadStudy(args[0], flags.studyFlags)
			if err != nil {
				return err
			}
			result, err := a.newResolver(0, "").Resolve(ctx, loaded)
			if err != nil {
				return err
			}
			issues := a.newValidator().Validate(ctx, loaded, result)
			issues.Sort()
			summary := result.Summary(issues)

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(validationReport{Summary: summary, Issues: issues}); err != nil {
					return err
				}
			} else {
				for _, issue := range issues {
					fmt.Fprintln(out, issue.String())
				}
				fmt.Fprintln(out, summary.String())
			}
			return exitStatus(a, summary, issues)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

type validationReport struct {
	Summary scenarios.Summary `json:"summary"`
	Issues  scenarios.Issues  `json:"issues"`
}
