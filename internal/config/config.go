// Package config loads run settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the top-level configuration.
type Config struct {
	Solver  SolverConfig  `koanf:"solver"`
	MAPD    MAPDConfig    `koanf:"mapd"`
	Log     LogConfig     `koanf:"log"`
	Output  OutputConfig  `koanf:"output"`
	Metrics MetricsConfig `koanf:"metrics"`
	Store   StoreConfig   `koanf:"store"`
}

// SolverConfig selects the planner and its limits. Seed, MaxTimestep and
// MaxCompTime override the instance file when set.
type SolverConfig struct {
	Name             string        `koanf:"name"`
	Seed             uint64        `koanf:"seed"`
	MaxTimestep      int           `koanf:"max_timestep"`
	MaxCompTime      time.Duration `koanf:"max_comp_time"`
	UseDistanceTable bool          `koanf:"use_distance_table"`
	DisableDistInit  bool          `koanf:"disable_dist_init"`
}

// MAPDConfig holds the task stream defaults.
type MAPDConfig struct {
	TaskNum       int     `koanf:"task_num"`
	TaskFrequency float64 `koanf:"task_frequency"`
}

// LogConfig configures internal/logger.
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json, text, auto
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // days
	Compress   bool   `koanf:"compress"`
}

// OutputConfig controls the result log.
type OutputConfig struct {
	File  string `koanf:"file"`
	Short bool   `koanf:"short"` // omit the solution
}

// MetricsConfig exposes prometheus metrics while running.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Path    string `koanf:"path"`
}

// StoreConfig persists run records in sqlite.
type StoreConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text", "auto"}
	validOutputs = []string{"stdout", "stderr", "file"}
)

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error
	if c.Solver.Name == "" {
		errs = append(errs, errors.New("solver.name is required"))
	}
	if c.Solver.MaxTimestep <= 0 {
		errs = append(errs, fmt.Errorf("solver.max_timestep must be positive, got %d", c.Solver.MaxTimestep))
	}
	if c.Solver.MaxCompTime <= 0 {
		errs = append(errs, fmt.Errorf("solver.max_comp_time must be positive, got %v", c.Solver.MaxCompTime))
	}
	if c.MAPD.TaskNum <= 0 {
		errs = append(errs, fmt.Errorf("mapd.task_num must be positive, got %d", c.MAPD.TaskNum))
	}
	if c.MAPD.TaskFrequency <= 0 {
		errs = append(errs, fmt.Errorf("mapd.task_frequency must be positive, got %g", c.MAPD.TaskFrequency))
	}
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q not one of %v", c.Log.Level, validLevels))
	}
	if !slices.Contains(validFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q not one of %v", c.Log.Format, validFormats))
	}
	if !slices.Contains(validOutputs, c.Log.Output) {
		errs = append(errs, fmt.Errorf("log.output %q not one of %v", c.Log.Output, validOutputs))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required when the store is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
