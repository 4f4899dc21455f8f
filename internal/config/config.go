// Package config loads the tool configuration: scenarios.toml, then .env
// files, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/goliatone/go-scenarios/pkg/warehouse"
)

const (
	DefaultFile    = "scenarios.toml"
	DefaultEnvFile = ".env"

	EnvWarehousePath = "PUDL_DB"
	EnvWorkers       = "SCENARIOS_WORKERS"
	EnvLogLevel      = "SCENARIOS_LOG_LEVEL"
	EnvStorePath     = "SCENARIOS_STORE"
)

// Config is the tool configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Resolve   ResolveConfig   `toml:"resolve"`
	Validate  ValidateConfig  `toml:"validate"`
	Warehouse WarehouseConfig `toml:"warehouse"`
	Store     StoreConfig     `toml:"store"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type ResolveConfig struct {
	Workers            int      `toml:"workers"`
	CatalogKey         string   `toml:"catalog_key"`
	RequiredParameters []string `toml:"required_parameters"`
	StampPeriod        bool     `toml:"stamp_period"`
}

type ValidateConfig struct {
	EmissionAxes     []string `toml:"emission_axes"`
	IgnoredValues    []string `toml:"ignored_values"`
	KnownParameters  []string `toml:"known_parameters"`
	StrictValueNames bool     `toml:"strict_value_names"`
	// FailOn is the lowest severity that makes validate exit non-zero.
	FailOn string `toml:"fail_on"`
}

// WarehouseConfig mirrors warehouse.Config with durations written as strings
// such as "30m".
type WarehouseConfig struct {
	Path            string `toml:"path"`
	ReadOnly        bool   `toml:"read_only"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	PingAttempts    int    `toml:"ping_attempts"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// DefaultConfig returns the built in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Resolve: ResolveConfig{
			CatalogKey: "settings_management",
		},
		Validate: ValidateConfig{
			EmissionAxes: []string{"emission_policies"},
			FailOn:       "error",
		},
		Warehouse: WarehouseConfig{
			ReadOnly:        true,
			MaxOpenConns:    warehouse.DefaultMaxOpenConns,
			MaxIdleConns:    warehouse.DefaultMaxIdleConns,
			ConnMaxLifetime: warehouse.DefaultConnMaxLifetime.String(),
			PingAttempts:    warehouse.DefaultPingAttempts,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("config: env file %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvWarehousePath); v != "" {
		c.Warehouse.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil || workers < 0 {
			return fmt.Errorf("config: %s must be a non-negative integer, got %q", EnvWorkers, v)
		}
		c.Resolve.Workers = workers
	}
	return nil
}

// WarehouseConfig converts the warehouse section for warehouse.Open.
func (c *Config) WarehouseConfig() (warehouse.Config, error) {
	out := warehouse.Config{
		Path:         c.Warehouse.Path,
		ReadOnly:     c.Warehouse.ReadOnly,
		MaxOpenConns: c.Warehouse.MaxOpenConns,
		MaxIdleConns: c.Warehouse.MaxIdleConns,
		PingAttempts: c.Warehouse.PingAttempts,
	}
	if c.Warehouse.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(c.Warehouse.ConnMaxLifetime)
		if err != nil {
			return warehouse.Config{}, fmt.Errorf("config: warehouse.conn_max_lifetime: %w", err)
		}
		out.ConnMaxLifetime = lifetime
	}
	return out, nil
}
