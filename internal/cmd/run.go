package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/metrics"
	"github.com/elektrokombinacija/pibt-mapd/internal/report"
	"github.com/elektrokombinacija/pibt-mapd/internal/store"
)

// loadScenario reads an instance file and applies the user's overrides.
func (a *app) loadScenario(cmd *cobra.Command, path string) (*core.Scenario, *core.Workspace, error) {
	sc, err := core.LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	if a.explicit(cmd, "solver.seed", "seed") {
		sc.Seed = a.cfg.Solver.Seed
	}
	if a.explicit(cmd, "solver.max_timestep", "max-timestep") {
		sc.MaxTimestep = a.cfg.Solver.MaxTimestep
	}
	if a.explicit(cmd, "solver.max_comp_time", "time-limit") {
		sc.MaxCompTime = a.cfg.Solver.MaxCompTime
	}
	if a.explicit(cmd, "mapd.task_num", "task-num") {
		sc.TaskNum = a.cfg.MAPD.TaskNum
	}
	if a.explicit(cmd, "mapd.task_frequency", "task-freq") {
		sc.TaskFrequency = a.cfg.MAPD.TaskFrequency
	}
	w, err := sc.LoadWorkspace()
	if err != nil {
		return nil, nil, err
	}
	return sc, w, nil
}

func (a *app) solverOptions(obs algo.Observer) []algo.Option {
	opts := []algo.Option{
		algo.WithLogger(a.log),
		algo.WithDistanceTable(a.cfg.Solver.UseDistanceTable),
	}
	if a.cfg.Solver.DisableDistInit {
		opts = append(opts, algo.WithoutDistInit())
	}
	if obs != nil {
		opts = append(opts, algo.WithObserver(obs))
	}
	return opts
}

// session holds the optional sinks of a run: the metrics endpoint and the
// run store.
type session struct {
	rec    *metrics.Recorder
	server *metrics.Server
	store  *store.Store
}

func (a *app) openSession() (*session, error) {
	s := &session{}
	if a.cfg.Metrics.Enabled {
		s.rec = metrics.NewRecorder()
		srv, err := s.rec.Serve(a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
		if err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		s.server = srv
		a.log.Info("serving metrics", "addr", srv.Addr(), "path", a.cfg.Metrics.Path)
	}
	if a.cfg.Store.Enabled {
		st, err := store.NewStore(a.cfg.Store.Path)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open run store: %w", err), s.close())
		}
		s.store = st
	}
	return s, nil
}

// observer returns nil when metrics are off so planners keep their no-op.
func (s *session) observer() algo.Observer {
	if s.rec == nil {
		return nil
	}
	return s.rec
}

func (s *session) close() error {
	var errs []error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, s.server.Shutdown(ctx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// record stamps the log with a run id and persists it when the store is on.
func (s *session) record(ctx context.Context, l *report.Log, seed uint64) error {
	if l.RunID == "" {
		l.RunID = uuid.NewString()
	}
	if s.rec != nil && l.MAPD {
		s.rec.RecordTasks(l.Solver, len(l.Tasks), int(l.ServiceTime*float64(len(l.Tasks))))
	}
	if s.store == nil {
		return nil
	}
	return s.store.RecordRun(ctx, store.RunFromLog(l, seed))
}

// printSummary writes the colored one-run summary.
func printSummary(out io.Writer, l *report.Log) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	bold.Fprintf(out, "%s ", l.Solver)
	if l.Solved {
		green.Fprint(out, "solved")
	} else {
		red.Fprint(out, "failed")
	}
	fmt.Fprintf(out, "  agents=%d", l.Agents)
	if l.MAPD {
		fmt.Fprintf(out, "  tasks=%d  service_time=%.2f  makespan=%d", len(l.Tasks), l.ServiceTime, l.Makespan)
	} else {
		fmt.Fprintf(out, "  soc=%d (lb %d)  makespan=%d (lb %d)", l.SOC, l.LBSOC, l.Makespan, l.LBMakespan)
	}
	fmt.Fprintf(out, "  comp_time=%dms", l.CompTime.Milliseconds())
	if l.PreprocessingTime > 0 {
		gray.Fprintf(out, "  preprocessing=%dms", l.PreprocessingTime.Milliseconds())
	}
	if l.ComplementTime > 0 {
		gray.Fprintf(out, "  complement=%dms", l.ComplementTime.Milliseconds())
	}
	fmt.Fprintln(out)
}

func addSolverFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("instance", "i", "", "instance file (required)")
	f.StringP("solver", "s", "", "solver name")
	f.StringP("output", "o", "", "result log path")
	f.IntP("time-limit", "T", 0, "max computation time in ms, overrides the instance file")
	f.Int("max-timestep", 0, "max timestep, overrides the instance file")
	f.Uint64("seed", 0, "random seed, overrides the instance file")
	f.BoolP("log-short", "L", false, "omit the solution from the result log")
	f.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	f.String("store", "", "record the run in this sqlite database")
	_ = cmd.MarkFlagRequired("instance")
}

const (
	kindMAPF = "mapf"
	kindMAPD = "mapd"
)

// solve builds the instance of the given kind, runs the named solver and
// validates the plan. Solved MAPF plans must reach every goal; unsolved ones
// are checked up to where they stop.
func (a *app) solve(path string, sc *core.Scenario, w *core.Workspace, kind, name string, obs algo.Observer) (*report.Log, error) {
	switch kind {
	case kindMAPF:
		inst, err := sc.MAPF(w)
		if err != nil {
			return nil, err
		}
		solver, err := algo.NewMAPFSolver(name, a.solverOptions(obs)...)
		if err != nil {
			return nil, err
		}
		a.log.Info("solving", "instance", path, "solver", solver.Name(),
			"agents", inst.NumAgents(), "seed", sc.Seed)
		res, err := solver.Solve(inst)
		if err != nil {
			return nil, err
		}
		validate := res.Plan.Validate
		if !res.Solved {
			validate = res.Plan.ValidatePartial
		}
		if err := validate(inst); err != nil {
			return nil, fmt.Errorf("validate plan: %w", err)
		}
		return report.FromMAPF(path, sc.MapFile, inst, res), nil

	case kindMAPD:
		inst, err := sc.MAPD(w)
		if err != nil {
			return nil, err
		}
		solver, err := algo.NewMAPDSolver(name, a.solverOptions(obs)...)
		if err != nil {
			return nil, err
		}
		a.log.Info("solving", "instance", path, "solver", solver.Name(),
			"agents", inst.NumAgents(), "tasks", inst.TaskNum, "seed", sc.Seed)
		res, err := solver.Solve(inst)
		if err != nil {
			return nil, err
		}
		if err := res.Plan.ValidateMAPD(inst); err != nil {
			return nil, fmt.Errorf("validate plan: %w", err)
		}
		return report.FromMAPD(path, sc.MapFile, inst, res), nil
	}
	return nil, fmt.Errorf("unknown problem kind %q, want %s or %s", kind, kindMAPF, kindMAPD)
}

// runSingle is the body of the mapf and mapd commands.
func (a *app) runSingle(cmd *cobra.Command, kind string) (err error) {
	path, _ := cmd.Flags().GetString("instance")
	sc, w, err := a.loadScenario(cmd, path)
	if err != nil {
		return err
	}
	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sess.close()) }()

	l, err := a.solve(path, sc, w, kind, a.cfg.Solver.Name, sess.observer())
	if err != nil {
		return err
	}
	if err := sess.record(cmd.Context(), l, sc.Seed); err != nil {
		return err
	}
	if err := l.WriteFile(a.cfg.Output.File, a.cfg.Output.Short); err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), l)
	a.log.Debug("saved result", "file", a.cfg.Output.File, "run_id", l.RunID)
	return nil
}
