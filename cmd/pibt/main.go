// Command pibt solves MAPF and MAPD instances with PIBT and its relatives.
package main

import (
	"fmt"
	"os"

	"github.com/elektrokombinacija/pibt-mapd/internal/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
