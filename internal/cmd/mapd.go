package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
)

func newMAPDCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapd",
		Short: "Run a pickup-and-delivery simulation",
		Long: `Run a lifelong MAPD simulation and write the result log.

Solvers: ` + strings.Join(algo.MAPDSolverNames(), ", ") + `

Tasks appear at pickup locations from the map's .pd file and are issued
until task_num have appeared. TP needs a well-formed instance and fails
with an error otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSingle(cmd, kindMAPD)
		},
	}
	addSolverFlags(cmd)
	f := cmd.Flags()
	f.Bool("use-dist-table", false, "precompute all-pairs distances before planning")
	f.Int("task-num", 0, "number of tasks, overrides the instance file")
	f.Float64("task-freq", 0, "tasks issued per timestep, overrides the instance file")
	return cmd
}
