package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/internal/logging"
	"github.com/goliatone/go-scenarios/pkg/document"
	"github.com/goliatone/go-scenarios/pkg/state"
)

type resolveFlags struct {
	studyFlags
	out     string
	store   string
	name    string
	workers int
	runID   string
}

func newResolveCmd(a *app) *cobra.Command {
	flags := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve SETTINGS",
		Short: "Resolve every scenario row and write the configurations",
		Long: `Resolve expands every (case_id, year) row of the scenario definitions.
Rows that fail are reported and skipped; the command exits non-zero when any
row failed or validation found issues at or above validate.fail_on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, a, flags, args[0])
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.out, "out", "", "Write each configuration to DIR/<year>/<case_id>.yml")
	cmd.Flags().StringVar(&flags.store, "store", "", "Persist configurations to this SQLite file")
	cmd.Flags().StringVar(&flags.name, "study", "", "Study name used by --store (defaults to the settings file name)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Rows resolved concurrently (defaults to resolve.workers or GOMAXPROCS)")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "Identifier reported for this run")
	return cmd
}

func runResolve(cmd *cobra.Command, a *app, flags *resolveFlags, settingsPath string) error {
	ctx := cmd.Context()
	loaded, err := a.loadStudy(settingsPath, flags.studyFlags)
	if err != nil {
		return err
	}
	result, err := a.newResolver(flags.workers, flags.runID).Resolve(ctx, loaded)
	if err != nil {
		return err
	}
	issues := a.newValidator().Validate(ctx, loaded, result)
	issues.Sort()
	logging.LogIssues(a.logger, issues)

	if flags.out != "" {
		written, err := writeConfigs(flags.out, result)
		if err != nil {
			return err
		}
		a.logger.Info().Int("files", written).Str("dir", flags.out).Msg("configurations written")
	}

	storePath := flags.store
	if storePath == "" {
		storePath = a.cfg.Store.Path
	}
	if storePath != "" {
		store, err := state.OpenSQLiteStore[scenarios.ResolvedConfig](ctx, storePath)
		if err != nil {
			return err
		}
		defer store.Close()
		name := flags.name
		if name == "" {
			name = studyName(settingsPath)
		}
		saved, err := state.SaveResult(ctx, store, name, result)
		if err != nil {
			return err
		}
		a.logger.Info().Int("configs", saved).Str("study", name).Str("store", storePath).Msg("configurations stored")
	}

	summary := result.Summary(issues)
	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	return exitStatus(a, summary, issues)
}

func exitStatus(a *app, summary scenarios.Summary, issues scenarios.Issues) error {
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d rows failed to resolve", summary.Failed, summary.Rows)
	}
	min, err := a.failOn()
	if err != nil {
		return err
	}
	if fatal := issues.Fatal(min); len(fatal) > 0 {
		return fmt.Errorf("validation found %d issues at or above %s", len(fatal), min)
	}
	return nil
}

func writeConfigs(dir string, result *scenarios.Result) (int, error) {
	written := 0
	var writeErr error
	result.Each(func(config *scenarios.ResolvedConfig) bool {
		data, err := document.EncodeYAML(config.Settings)
		if err != nil {
			writeErr = fmt.Errorf("encode %s: %w", config.Key(), err)
			return false
		}
		path := filepath.Join(dir, strconv.Itoa(config.PlanningYear), config.CaseID+".yml")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			writeErr = err
			return false
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			writeErr = err
			return false
		}
		written++
		return true
	})
	return written, writeErr
}

func studyName(settingsPath string) string {
	base := filepath.Base(filepath.Clean(settingsPath))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
