// Package commands provides the CLI commands for scenarios.
package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	scenarios "github.com/goliatone/go-scenarios"
	"github.com/goliatone/go-scenarios/internal/config"
	"github.com/goliatone/go-scenarios/internal/logging"
	"github.com/goliatone/go-scenarios/pkg/activity"
	"github.com/goliatone/go-scenarios/pkg/study"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// app carries global flags and the state built from them before a
// subcommand runs.
type app struct {
	logLevel   string
	pretty     bool
	envFile    string
	configPath string

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "scenarios",
		Short: "Expand scenario settings into per-case, per-year configurations",
		Long: `scenarios resolves a baseline settings file, its settings_management
override catalog and a scenario definitions table into one configuration per
case and planning year, and validates the result.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "Human readable log output")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Environment file loaded before the configuration")
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultFile, "Tool configuration file")

	root.SetVersionTemplate(fmt.Sprintf("scenarios %s (%s)\n", Version, BuildTime))

	root.AddCommand(newResolveCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newParamsCmd(a))
	root.AddCommand(newTraceCmd(a))
	root.AddCommand(newCheckDBCmd(a))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: cmd.ErrOrStderr(),
		Pretty: a.pretty || cfg.Log.Pretty,
	})
	return nil
}

type studyFlags struct {
	scenarios string
	policies  string
	pattern   string
}

func (f *studyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scenarios, "scenarios", "", "Scenario definitions file (overrides scenario_definitions_fn)")
	cmd.Flags().StringVar(&f.policies, "policies", "", "Directory of policy tables to load instead of the referenced files")
	cmd.Flags().StringVar(&f.pattern, "policy-pattern", "", "Glob selecting policy tables under --policies")
}

func (a *app) loadStudy(settingsPath string, flags studyFlags) (*scenarios.Study, error) {
	opts := []study.Option{study.WithCatalogKey(a.cfg.Resolve.CatalogKey)}
	if flags.scenarios != "" {
		opts = append(opts, study.WithScenarioDefinitions(flags.scenarios))
	}
	if flags.policies != "" {
		opts = append(opts, study.WithPolicyDir(flags.policies, flags.pattern))
	}
	loaded, err := study.Load(settingsPath, opts...)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().
		Str("settings", settingsPath).
		Int("rows", len(loaded.Table.Rows)).
		Int("fragments", loaded.Catalog.Len()).
		Int("rules", len(loaded.Rules)).
		Msg("study loaded")
	return loaded, nil
}

func (a *app) hooks() activity.Hooks {
	return activity.Hooks{logging.ActivityHook(a.logger)}
}

func (a *app) newResolver(workers int, runID string) *scenarios.Resolver {
	if workers <= 0 {
		workers = a.cfg.Resolve.Workers
	}
	return scenarios.NewResolver(
		scenarios.WithWorkers(workers),
		scenarios.WithRunID(runID),
		scenarios.WithRequiredParameters(a.cfg.Resolve.RequiredParameters...),
		scenarios.WithPlanningPeriodStamp(a.cfg.Resolve.StampPeriod),
		scenarios.WithResolutionLogger(logging.ResolutionLogger(a.logger)),
		scenarios.WithActivityHooks(a.hooks()),
	)
}

func (a *app) newValidator() *scenarios.Validator {
	v := a.cfg.Validate
	return scenarios.NewValidator(
		scenarios.WithEmissionAxes(v.EmissionAxes...),
		scenarios.WithIgnoredValues(v.IgnoredValues...),
		scenarios.WithKnownParameters(v.KnownParameters...),
		scenarios.WithStrictValueNames(v.StrictValueNames),
		scenarios.WithEvaluatorLogger(logging.EvaluatorLogger(a.logger)),
		scenarios.WithIssueHooks(a.hooks()),
	)
}

func (a *app) failOn() (scenarios.Severity, error) {
	severity, err := scenarios.ParseSeverity(a.cfg.Validate.FailOn)
	if err != nil {
		return "", fmt.Errorf("config: validate.fail_on: %w", err)
	}
	return severity, nil
}
