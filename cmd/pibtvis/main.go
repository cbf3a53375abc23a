// Command pibtvis replays a result log written by pibt.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"gioui.org/app"
	"gioui.org/unit"
	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/pibt-mapd/internal/vis"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

func main() {
	var mapPath string
	cmd := &cobra.Command{
		Use:   "pibtvis <result-log>",
		Short: "Replay a MAPF or MAPD result log",
		Long: `Open a window that plays back the solution of a result log on its map.

Keys: space play/pause, left/right step, home/end jump, up/down speed,
P paths, G goals, R refit, esc clear selection. Drag to pan, scroll to
zoom, click an agent to follow it.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := state.Load(args[0], mapPath)
			if err != nil {
				return err
			}
			slog.Info("loaded result log", "solver", st.Log.Solver, "agents", st.NumAgents(),
				"timesteps", st.LastStep()+1, "conflicts", len(st.Conflicts))

			go func() {
				window := new(app.Window)
				window.Option(
					app.Title("pibtvis: "+st.Log.Solver+" "+st.Map.Name),
					app.Size(unit.Dp(1400), unit.Dp(900)),
				)
				if err := vis.NewApp(st).Run(window); err != nil {
					slog.Error("viewer stopped", "error", err)
					os.Exit(1)
				}
				os.Exit(0)
			}()
			app.Main()
			return nil
		},
	}
	cmd.Flags().StringVar(&mapPath, "map", "", "map file, overrides the log's map_file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
