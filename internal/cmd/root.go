// Package cmd implements the pibt command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/config"
	"github.com/elektrokombinacija/pibt-mapd/internal/logger"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// app is the state shared by all subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	configFile string
	logLevel   string
	verbose    bool

	loader    *config.Loader
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "pibt",
		Short: "Multi-agent path finding and pickup-and-delivery planners",
		Long: `pibt plans collision-free moves for many agents on grid maps.

MAPF solvers (PIBT, PIBT_PLUS, HCA) bring every agent to its goal.
MAPD solvers (PIBT, TP) serve a stream of pickup-and-delivery tasks.
Results are written as a key=value log the viewer can replay.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (default pibt.yaml or config/pibt.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log per-step progress")

	cmd.AddCommand(newMAPFCommand(a))
	cmd.AddCommand(newMAPDCommand(a))
	cmd.AddCommand(newGenCommand(a))
	cmd.AddCommand(newBenchCommand(a))
	cmd.AddCommand(newValidateCommand(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	a.loader = config.NewLoader(config.WithConfigFile(a.configFile))
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := a.applyFlags(cmd); err != nil {
		return err
	}

	lc := logger.Config{
		Level:      a.cfg.Log.Level,
		Format:     a.cfg.Log.Format,
		Output:     a.cfg.Log.Output,
		FilePath:   a.cfg.Log.FilePath,
		MaxSize:    a.cfg.Log.MaxSize,
		MaxBackups: a.cfg.Log.MaxBackups,
		MaxAge:     a.cfg.Log.MaxAge,
		Compress:   a.cfg.Log.Compress,
	}
	switch {
	case a.logLevel != "":
		lc.Level = a.logLevel
	case a.verbose:
		lc.Level = "debug"
	}
	a.log, a.logCloser = logger.Init(lc)
	return nil
}

func (a *app) close() error {
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

// applyFlags copies changed command flags over the loaded config.
func (a *app) applyFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			err = apply()
		}
	}
	c := a.cfg
	set("solver", func() (e error) { c.Solver.Name, e = f.GetString("solver"); return })
	set("seed", func() (e error) { c.Solver.Seed, e = f.GetUint64("seed"); return })
	set("max-timestep", func() (e error) { c.Solver.MaxTimestep, e = f.GetInt("max-timestep"); return })
	set("time-limit", func() error {
		ms, e := f.GetInt("time-limit")
		c.Solver.MaxCompTime = time.Duration(ms) * time.Millisecond
		return e
	})
	set("use-dist-table", func() (e error) { c.Solver.UseDistanceTable, e = f.GetBool("use-dist-table"); return })
	set("no-dist-init", func() (e error) { c.Solver.DisableDistInit, e = f.GetBool("no-dist-init"); return })
	set("task-num", func() (e error) { c.MAPD.TaskNum, e = f.GetInt("task-num"); return })
	set("task-freq", func() (e error) { c.MAPD.TaskFrequency, e = f.GetFloat64("task-freq"); return })
	set("output", func() (e error) { c.Output.File, e = f.GetString("output"); return })
	set("log-short", func() (e error) { c.Output.Short, e = f.GetBool("log-short"); return })
	set("metrics-addr", func() (e error) {
		c.Metrics.Enabled = true
		c.Metrics.Addr, e = f.GetString("metrics-addr")
		return
	})
	set("store", func() (e error) {
		c.Store.Enabled = true
		c.Store.Path, e = f.GetString("store")
		return
	})
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	return c.Validate()
}

// explicit reports whether the value behind key was chosen by the user,
// either with flag or in the config file or environment.
func (a *app) explicit(cmd *cobra.Command, key, flag string) bool {
	f := cmd.Flags()
	if f.Lookup(flag) != nil && f.Changed(flag) {
		return true
	}
	return a.loader.IsSet(key)
}
