package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "PIBT_"
	configEnvVar = "PIBT_CONFIG"
)

// ErrConfigNotFound is returned when an explicitly requested file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Loader reads configuration with precedence defaults < file < env.
type Loader struct {
	k           *koanf.Koanf
	set         *koanf.Koanf // file and env only
	configPaths []string
	required    bool
	envPrefix   string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// NewLoader creates a loader that looks for pibt.yaml in the working
// directory unless told otherwise.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:           koanf.New("."),
		set:         koanf.New("."),
		configPaths: []string{"pibt.yaml", "config/pibt.yaml"},
		envPrefix:   envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithConfigFile makes path the only candidate and requires it to exist.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		if path != "" {
			l.configPaths = []string{path}
			l.required = true
		}
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// Load merges all sources, unmarshals and validates.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := l.loadConfigFile(); err != nil {
		return nil, err
	}
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Merge(l.set); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsSet reports whether key came from the config file or the environment
// rather than the defaults. Valid after Load.
func (l *Loader) IsSet(key string) bool {
	return l.set.Exists(key)
}

// Defaults returns the built-in values keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"solver.name":               "PIBT",
		"solver.seed":               0,
		"solver.max_timestep":       5000,
		"solver.max_comp_time":      60 * time.Second,
		"solver.use_distance_table": false,
		"solver.disable_dist_init":  false,

		"mapd.task_num":       10,
		"mapd.task_frequency": 1.0,

		"log.level":       "info",
		"log.format":      "auto",
		"log.output":      "stderr",
		"log.file_path":   "logs/pibt.log",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"output.file":  "./result.txt",
		"output.short": false,

		"metrics.enabled": false,
		"metrics.addr":    ":9090",
		"metrics.path":    "/metrics",

		"store.enabled": false,
		"store.path":    "runs.db",
	}
}

func (l *Loader) loadConfigFile() error {
	paths := l.configPaths
	if p := os.Getenv(configEnvVar); p != "" && !l.required {
		paths = append([]string{p}, paths...)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := l.set.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	if l.required {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, paths[0])
	}
	return nil
}

// envKeys maps lower-cased variable names without prefix to keys whose
// segments contain underscores. Others get every "_" turned into ".".
var envKeys = map[string]string{
	"solver_max_timestep":       "solver.max_timestep",
	"solver_max_comp_time":      "solver.max_comp_time",
	"solver_use_distance_table": "solver.use_distance_table",
	"solver_disable_dist_init":  "solver.disable_dist_init",
	"mapd_task_num":             "mapd.task_num",
	"mapd_task_frequency":       "mapd.task_frequency",
	"log_file_path":             "log.file_path",
	"log_max_size":              "log.max_size",
	"log_max_backups":           "log.max_backups",
	"log_max_age":               "log.max_age",
}

func (l *Loader) loadEnv() error {
	return l.set.Load(env.ProviderWithValue(l.envPrefix, ".", func(key, value string) (string, any) {
		k := strings.ToLower(strings.TrimPrefix(key, l.envPrefix))
		if k == "config" {
			return "", nil
		}
		if mapped, ok := envKeys[k]; ok {
			return mapped, value
		}
		return strings.ReplaceAll(k, "_", "."), value
	}), nil)
}
