package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

func newGenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a MAPF instance file with explicit starts and goals",
		Long: `Generate starts and goals and write them as an instance file.

Either read an instance file (-i) whose random starts and goals get fixed,
or build one from a map (--map, --agents).`,
		Example: `  pibt gen -i random.txt -o fixed.txt
  pibt gen --map maps/empty-8-8.map --agents 20 --well-formed -o scen.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGen(cmd)
		},
	}
	f := cmd.Flags()
	f.StringP("instance", "i", "", "instance file to fix")
	f.String("map", "", "map file")
	f.Int("agents", 0, "number of agents")
	f.Bool("well-formed", false, "draw well-formed starts and goals")
	f.Uint64("seed", 0, "random seed")
	f.Int("max-timestep", 0, "max timestep written to the instance")
	f.IntP("time-limit", "T", 0, "max computation time in ms written to the instance")
	f.StringP("output", "o", "", "instance file to write (default stdout)")
	cmd.MarkFlagsMutuallyExclusive("instance", "map")
	return cmd
}

func (a *app) runGen(cmd *cobra.Command) error {
	f := cmd.Flags()
	path, _ := f.GetString("instance")
	mapFile, _ := f.GetString("map")

	var sc *core.Scenario
	switch {
	case path != "":
		var err error
		if sc, err = core.LoadScenario(path); err != nil {
			return err
		}
	case mapFile != "":
		agents, _ := f.GetInt("agents")
		wellFormed, _ := f.GetBool("well-formed")
		sc = &core.Scenario{
			MapFile:       mapFile,
			Agents:        agents,
			RandomProblem: true,
			WellFormed:    wellFormed,
			MaxTimestep:   core.DefaultMaxTimestep,
			MaxCompTime:   core.DefaultMaxCompTime,
		}
	default:
		return fmt.Errorf("either --instance or --map is required")
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

	w, err := sc.LoadWorkspace()
	if err != nil {
		return err
	}
	inst, err := sc.MAPF(w)
	if err != nil {
		return err
	}

	// the written map path is relative to the output file's directory when
	// both are on disk
	out := cmd.OutOrStdout()
	outPath, _ := f.GetString("output")
	mapRef := sc.MapPath()
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create instance file: %w", err)
		}
		defer file.Close()
		out = file
		if rel, err := filepath.Rel(filepath.Dir(outPath), mapRef); err == nil {
			mapRef = rel
		}
	}
	if err := core.WriteScenario(out, inst, mapRef); err != nil {
		return fmt.Errorf("write instance: %w", err)
	}
	a.log.Info("generated instance", "agents", inst.NumAgents(), "map", mapRef, "output", outPath)
	return nil
}
