package algo

import (
	"fmt"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// Conflict represents a collision between two agents in a plan.
type Conflict struct {
	Agent1, Agent2 int
	Node           core.NodeID
	Time           int  // timestep the collision is observed at
	IsEdge         bool // swap instead of shared node
	// For swaps: agent 1 moves EdgeFrom -> EdgeTo between Time-1 and Time.
	EdgeFrom, EdgeTo core.NodeID
}

func (c *Conflict) String() string {
	if c.IsEdge {
		return fmt.Sprintf("swap a%d/a%d on %d-%d at t=%d", c.Agent1, c.Agent2, c.EdgeFrom, c.EdgeTo, c.Time)
	}
	return fmt.Sprintf("vertex a%d/a%d at %d t=%d", c.Agent1, c.Agent2, c.Node, c.Time)
}

// FindFirstConflict returns the earliest conflict in plan, or nil. At equal
// timesteps vertex conflicts come first.
func FindFirstConflict(plan *core.Plan) *Conflict {
	for t := 0; t < plan.Len(); t++ {
		if c := vertexConflicts(plan, t, true); len(c) > 0 {
			return c[0]
		}
		if c := swapConflicts(plan, t, true); len(c) > 0 {
			return c[0]
		}
	}
	return nil
}

// FindAllConflicts returns every vertex and swap conflict in plan, ordered
// by timestep.
func FindAllConflicts(plan *core.Plan) []*Conflict {
	var conflicts []*Conflict
	for t := 0; t < plan.Len(); t++ {
		conflicts = append(conflicts, vertexConflicts(plan, t, false)...)
		conflicts = append(conflicts, swapConflicts(plan, t, false)...)
	}
	return conflicts
}

func vertexConflicts(plan *core.Plan, t int, first bool) []*Conflict {
	var out []*Conflict
	cfg := plan.Get(t)
	for i := 0; i < len(cfg); i++ {
		for j := i + 1; j < len(cfg); j++ {
			if cfg[i] != cfg[j] {
				continue
			}
			out = append(out, &Conflict{Agent1: i, Agent2: j, Node: cfg[i], Time: t})
			if first {
				return out
			}
		}
	}
	return out
}

func swapConflicts(plan *core.Plan, t int, first bool) []*Conflict {
	if t == 0 {
		return nil
	}
	var out []*Conflict
	prev, cfg := plan.Get(t-1), plan.Get(t)
	for i := 0; i < len(cfg); i++ {
		if prev[i] == cfg[i] {
			continue
		}
		for j := i + 1; j < len(cfg); j++ {
			if prev[i] == cfg[j] && prev[j] == cfg[i] {
				out = append(out, &Conflict{
					Agent1:   i,
					Agent2:   j,
					Node:     prev[i],
					Time:     t,
					IsEdge:   true,
					EdgeFrom: prev[i],
					EdgeTo:   cfg[i],
				})
				if first {
					return out
				}
			}
		}
	}
	return out
}
