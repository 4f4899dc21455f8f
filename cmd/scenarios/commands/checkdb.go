package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/internal/config"
	"github.com/goliatone/go-scenarios/pkg/document"
	"github.com/goliatone/go-scenarios/pkg/warehouse"
)

type checkDBFlags struct {
	path  string
	start int
	end   int
}

func newCheckDBCmd(a *app) *cobra.Command {
	flags := &checkDBFlags{}
	cmd := &cobra.Command{
		Use:   "check-db [SETTINGS]",
		Short: "Open the data warehouse and list its tables",
		Long: `check-db opens the warehouse named by --db, warehouse.path or PUDL_DB.
The year window comes from --start/--end or from the planning periods of
SETTINGS.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.cfg.WarehouseConfig()
			if err != nil {
				return err
			}
			if flags.path != "" {
				cfg.Path = flags.path
			}
			if cfg.Path == "" {
				return fmt.Errorf("no warehouse configured: pass --db or set %s", config.EnvWarehousePath)
			}

			start, end := flags.start, flags.end
			if len(args) == 1 && (start == 0 || end == 0) {
				from, to, err := settingsWindow(args[0], a.cfg.Resolve.CatalogKey)
				if err != nil {
					return err
				}
				if start == 0 {
					start = from
				}
				if end == 0 {
					end = to
				}
			}

			conn, err := warehouse.Open(cmd.Context(), cfg, start, end)
			if err != nil {
				return err
			}
			defer conn.Close()

			tables, err := conn.Tables(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d tables, years %d-%d\n", cfg.Path, len(tables), start, end)
			if len(tables) > 0 {
				fmt.Fprintln(out, strings.Join(tables, "\n"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.path, "db", "", "Warehouse SQLite file")
	cmd.Flags().IntVar(&flags.start, "start", 0, "First year of data")
	cmd.Flags().IntVar(&flags.end, "end", 0, "Last year of data")
	return cmd
}

func settingsWindow(path, catalogKey string) (int, int, error) {
	doc, err := document.Load(path)
	if err != nil {
		return 0, 0, err
	}
	baseline, _, _, err := scenarios.SplitDocument(doc, catalogKey)
	if err != nil {
		return 0, 0, err
	}
	periods, err := scenarios.PlanningPeriods(baseline)
	if err != nil {
		return 0, 0, err
	}
	start, end, ok := scenarios.YearWindow(periods)
	if !ok {
		return 0, 0, errors.New("settings declare no planning periods")
	}
	return start, end, nil
}
