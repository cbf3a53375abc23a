package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
)

func newMAPFCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapf",
		Short: "Solve a multi-agent path finding instance",
		Long: `Solve a MAPF instance and write the result log.

Solvers: ` + strings.Join(algo.MAPFSolverNames(), ", ") + `

Starts and goals come from the instance file; when it lists fewer pairs
than agents, they are drawn at random from the instance seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSingle(cmd, kindMAPF)
		},
	}
	addSolverFlags(cmd)
	cmd.Flags().Bool("no-dist-init", false, "do not seed PIBT priorities with start-goal distances")
	return cmd
}
