package algo

import (
	"fmt"
	"slices"
	"strings"
)

var (
	mapfSolvers = map[string]func(...Option) MAPFSolver{
		"PIBT":      func(o ...Option) MAPFSolver { return NewPIBT(o...) },
		"PIBT_PLUS": func(o ...Option) MAPFSolver { return NewPIBTPlus(o...) },
		"HCA":       func(o ...Option) MAPFSolver { return NewHCA(o...) },
	}
	mapdSolvers = map[string]func(...Option) MAPDSolver{
		"PIBT": func(o ...Option) MAPDSolver { return NewPIBTMAPD(o...) },
		"TP":   func(o ...Option) MAPDSolver { return NewTP(o...) },
	}
)

// NewMAPFSolver creates a MAPF solver by name, case-insensitive.
func NewMAPFSolver(name string, opts ...Option) (MAPFSolver, error) {
	ctor, ok := mapfSolvers[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownSolver, name, strings.Join(MAPFSolverNames(), ", "))
	}
	return ctor(opts...), nil
}

// NewMAPDSolver creates a MAPD solver by name, case-insensitive.
func NewMAPDSolver(name string, opts ...Option) (MAPDSolver, error) {
	ctor, ok := mapdSolvers[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownSolver, name, strings.Join(MAPDSolverNames(), ", "))
	}
	return ctor(opts...), nil
}

// MAPFSolverNames lists registered MAPF solvers in sorted order.
func MAPFSolverNames() []string {
	return sortedKeys(mapfSolvers)
}

// MAPDSolverNames lists registered MAPD solvers in sorted order.
func MAPDSolverNames() []string {
	return sortedKeys(mapdSolvers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
