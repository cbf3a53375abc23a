package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/pibt-mapd/internal/report"
)

// Suite is a benchmark file: every entry expands to one run per
// (agents, solver, seed) combination.
type Suite struct {
	Kind    string       `yaml:"kind"` // default kind of entries, mapf or mapd
	Entries []SuiteEntry `yaml:"runs"`
}

// SuiteEntry is one instance file with the sweeps to run on it.
type SuiteEntry struct {
	Instance string   `yaml:"instance"`
	Kind     string   `yaml:"kind"`
	Solvers  []string `yaml:"solvers"`
	Seeds    []uint64 `yaml:"seeds"`
	// Agents overrides the instance's agent count; empty keeps it.
	Agents []int `yaml:"agents"`
}

// BenchRun is one expanded suite run.
type BenchRun struct {
	Instance string
	Kind     string
	Solver   string
	Seed     uint64
	Agents   int // 0 keeps the instance value
}

// LoadSuite reads a suite file. Instance paths are resolved against the
// suite's directory.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	suite, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range suite.Entries {
		if p := suite.Entries[i].Instance; !filepath.IsAbs(p) {
			suite.Entries[i].Instance = filepath.Join(dir, p)
		}
	}
	return suite, nil
}

// ParseSuite decodes and checks a suite. Unknown fields are errors.
func ParseSuite(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Suite
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if s.Kind == "" {
		s.Kind = kindMAPF
	}
	if len(s.Entries) == 0 {
		return nil, errors.New("no runs")
	}
	var errs []error
	for i := range s.Entries {
		e := &s.Entries[i]
		if e.Kind == "" {
			e.Kind = s.Kind
		}
		e.Kind = strings.ToLower(e.Kind)
		if e.Instance == "" {
			errs = append(errs, fmt.Errorf("run %d: instance is required", i))
		}
		if e.Kind != kindMAPF && e.Kind != kindMAPD {
			errs = append(errs, fmt.Errorf("run %d: kind %q, want %s or %s", i, e.Kind, kindMAPF, kindMAPD))
		}
		if len(e.Solvers) == 0 {
			errs = append(errs, fmt.Errorf("run %d: no solvers", i))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &s, nil
}

// Expand lists the runs in file order; seeds vary fastest.
func (s *Suite) Expand() []BenchRun {
	var runs []BenchRun
	for _, e := range s.Entries {
		agents := e.Agents
		if len(agents) == 0 {
			agents = []int{0}
		}
		seeds := e.Seeds
		if len(seeds) == 0 {
			seeds = []uint64{0}
		}
		for _, n := range agents {
			for _, solver := range e.Solvers {
				for _, seed := range seeds {
					runs = append(runs, BenchRun{
						Instance: e.Instance,
						Kind:     e.Kind,
						Solver:   solver,
						Seed:     seed,
						Agents:   n,
					})
				}
			}
		}
	}
	return runs
}

func newBenchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <suite.yaml>",
		Short: "Run a benchmark suite and write CSV rows",
		Long: `Run every (instance, agents, solver, seed) combination of a YAML suite
and append one CSV row per run.

  kind: mapf
  runs:
    - instance: instances/random-32-32-20.txt
      solvers: [PIBT, PIBT_PLUS, HCA]
      seeds: [0, 1, 2]
      agents: [50, 100]
    - instance: instances/warehouse.txt
      kind: mapd
      solvers: [PIBT, TP]

A failed run is logged and the suite continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBench(cmd, args[0])
		},
	}
	f := cmd.Flags()
	f.StringP("output", "o", "bench.csv", "CSV output file, - for stdout")
	f.IntP("time-limit", "T", 0, "max computation time in ms per run, overrides the instance files")
	f.Int("max-timestep", 0, "max timestep per run, overrides the instance files")
	f.Bool("use-dist-table", false, "precompute all-pairs distances for MAPD runs")
	f.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	f.String("store", "", "record every run in this sqlite database")
	return cmd
}

func (a *app) runBench(cmd *cobra.Command, suitePath string) (err error) {
	suite, err := LoadSuite(suitePath)
	if err != nil {
		return err
	}

	// bench writes CSV, not a result log; -o is read from its own flag
	outPath, _ := cmd.Flags().GetString("output")
	var out io.Writer = cmd.OutOrStdout()
	if outPath != "-" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer file.Close()
		out = file
	}
	csvw, err := report.NewCSVWriter(out)
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sess.close()) }()

	runs := suite.Expand()
	summary := cmd.ErrOrStderr()
	if outPath != "-" {
		summary = cmd.OutOrStdout()
	}
	var failed int
	for i, run := range runs {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		l, err := a.benchRun(cmd, sess, run)
		if err != nil {
			failed++
			a.log.Error("run failed", "instance", run.Instance, "solver", run.Solver,
				"seed", run.Seed, "agents", run.Agents, "error", err)
			color.New(color.FgRed).Fprintf(summary, "[%d/%d] %s %s: %v\n", i+1, len(runs), run.Solver, filepath.Base(run.Instance), err)
			continue
		}
		if err := sess.record(cmd.Context(), l, run.Seed); err != nil {
			return err
		}
		if err := csvw.Write(l, run.Seed); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		fmt.Fprintf(summary, "[%d/%d] ", i+1, len(runs))
		printSummary(summary, l)
	}
	a.log.Info("bench finished", "runs", len(runs), "failed", failed, "output", outPath)
	return nil
}

func (a *app) benchRun(cmd *cobra.Command, sess *session, run BenchRun) (*report.Log, error) {
	sc, w, err := a.loadScenario(cmd, run.Instance)
	if err != nil {
		return nil, err
	}
	sc.Seed = run.Seed
	if run.Agents > 0 {
		sc.Agents = run.Agents
	}
	return a.solve(run.Instance, sc, w, run.Kind, run.Solver, sess.observer())
}
