package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/pkg/document"
	"github.com/goliatone/go-scenarios/schema/openapi"
)

func newParamsCmd(a *app) *cobra.Command {
	var jsonOutput, openAPIOutput bool
	cmd := &cobra.Command{
		Use:   "params SETTINGS",
		Short: "List the baseline parameters and their types",
		Long: `List the baseline parameters and their types.

With --openapi the settings are published as an OpenAPI document: types and
defaults from the baseline, alternatives and override annotations from the
scenario catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Load(args[0])
			if err != nil {
				return err
			}
			baseline, catalog, _, err := scenarios.SplitDocument(doc, a.cfg.Resolve.CatalogKey)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if openAPIOutput {
				schema, err := openapi.NewGenerator(
					openapi.WithInfo(filepath.Base(args[0]), Version),
					openapi.WithRootComponent("Settings"),
				).Generate(baseline, catalog)
				if err != nil {
					return err
				}
				return encoder.Encode(schema)
			}

			fields := scenarios.DescribeParameters(baseline)
			if jsonOutput {
				return encoder.Encode(fields)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, field := range fields {
				fmt.Fprintf(w, "%s\t%s\n", field.Path, field.Type)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the parameters as JSON")
	cmd.Flags().BoolVar(&openAPIOutput, "openapi", false, "Print the settings as an OpenAPI document")
	return cmd
}
