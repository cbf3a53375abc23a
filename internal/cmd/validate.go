package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/report"
)

// ErrPlanInvalid is returned by validate when the logged plan breaks a rule.
var ErrPlanInvalid = errors.New("plan is invalid")

func newValidateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <result-log>",
		Short: "Check a result log for collisions and illegal moves",
		Long: `Replay the solution of a result log on its map and report every vertex
and swap conflict, every move between non-adjacent cells, and, for solved
MAPF logs, agents that end away from their goals.

The map is taken from the log's map_file, resolved against the log's
directory, unless --map is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args[0])
		},
	}
	cmd.Flags().String("map", "", "map file, overrides the log's map_file")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, logPath string) error {
	l, err := report.ReadFile(logPath)
	if err != nil {
		return err
	}
	if len(l.Solution) == 0 {
		return fmt.Errorf("%s has no solution, write it without --log-short", logPath)
	}

	mapPath, _ := cmd.Flags().GetString("map")
	if mapPath == "" {
		mapPath = l.MapPath(logPath)
	}
	w, err := core.LoadMap(mapPath)
	if err != nil {
		return err
	}

	plan, err := l.Plan(w)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	red := color.New(color.FgRed)
	var problems int
	if err := plan.ValidateTransitions(w); err != nil {
		problems++
		red.Fprintf(out, "transition: %v\n", err)
	}
	for _, c := range algo.FindAllConflicts(plan) {
		problems++
		red.Fprintf(out, "conflict: %s\n", c)
	}
	if l.Solved && !l.MAPD && len(l.Goals) > 0 {
		last := l.Solution[len(l.Solution)-1]
		for i, p := range l.Goals {
			if i < len(last) && last[i] != p {
				problems++
				red.Fprintf(out, "agent %d ends at %s, goal %s\n", i, last[i], p)
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("%w: %d problems", ErrPlanInvalid, problems)
	}
	color.New(color.FgGreen).Fprintf(out, "valid: %d agents, %d timesteps\n", plan.NumAgents(), plan.Len())
	return nil
}
