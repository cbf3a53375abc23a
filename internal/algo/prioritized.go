package algo

import (
	"cmp"
	"slices"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// HCA implements Hierarchical Cooperative A*: agents are planned one at a
// time, farthest first, each avoiding the paths already reserved.
type HCA struct {
	planner
}

// NewHCA creates a prioritized planning solver.
func NewHCA(opts ...Option) *HCA {
	return &HCA{planner: newPlanner("HCA", opts)}
}

// Solve plans every agent in priority order. The run fails as soon as one
// agent has no path.
func (s *HCA) Solve(inst *core.MAPFInstance) (*Result, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return s.solve(inst, nil), nil
}

func (s *HCA) solve(inst *core.MAPFInstance, dist AgentDistances) *Result {
	s.begin(&inst.Problem)
	res := &Result{Plan: &core.Plan{}}

	if dist == nil {
		s.log.Debug("pre-processing, create distance table by BFS")
		dist = NewAgentDistances(inst.G, inst.Goals)
		res.PreprocessingTime = s.elapsed()
	}
	res.LBSOC, res.LBMakespan = dist.LowerBounds(inst.Starts)

	n := inst.NumAgents()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int {
		return cmp.Compare(dist.Dist(j, inst.Starts[j]), dist.Dist(i, inst.Starts[i]))
	})

	pp := &prioritizedPlanner{
		planner: &s.planner,
		inst:    inst,
		dist:    dist,
		paths:   make([]core.Path, n),
		table:   NewPathTable(inst.G.Size()),
	}
	for _, id := range order {
		if s.overCompTime() {
			s.log.Debug("timeout", "elapsed", s.elapsed())
			return s.finish(res)
		}
		path := pp.plan(id)
		if path == nil {
			s.log.Debug("failed to find a path", "agent", id)
			return s.finish(res)
		}
		pp.register(id, path)
	}

	res.Plan = core.PlanFromPaths(pp.paths)
	res.Solved = true
	return s.finish(res)
}

// prioritizedPlanner plans single agents against a path table holding the
// agents already planned. Shorter paths are extended by waiting at their
// final node so the table covers the common makespan.
type prioritizedPlanner struct {
	*planner
	inst  *core.MAPFInstance
	dist  AgentDistances
	paths []core.Path
	table *PathTable
}

// plan finds a path for agent id that reaches its goal after the last time
// another agent occupies it.
func (pp *prioritizedPlanner) plan(id int) core.Path {
	inst := pp.inst
	goal := inst.Goals[id]
	idealDist := pp.dist.Dist(id, inst.Starts[id])
	makespan := pp.table.Makespan()

	maxConstraintTime := 0
	for t := makespan; t >= idealDist && maxConstraintTime == 0; t-- {
		if k := pp.table.Get(t, goal); k != noAgent && k != id {
			maxConstraintTime = t
		}
	}

	f := func(n *SearchNode) int { return n.G + pp.dist.Dist(id, n.V) }
	if idealDist <= maxConstraintTime {
		f = func(n *SearchNode) int {
			return max(maxConstraintTime+1, n.G+pp.dist.Dist(id, n.V))
		}
	}

	path, expanded := SpaceTimeAStar(inst.G, SearchParams{
		Start: inst.Starts[id],
		F:     f,
		IsGoal: func(n *SearchNode) bool {
			return n.V == goal && n.G > maxConstraintTime
		},
		Invalid: func(m *SearchNode) bool {
			if m.G > pp.maxTimestep {
				return true
			}
			if makespan < 0 {
				return false
			}
			if m.G > makespan {
				return pp.table.VertexConflict(makespan, m.V)
			}
			return pp.table.VertexConflict(m.G, m.V) ||
				pp.table.SwapConflict(m.G, m.Parent.V, m.V)
		},
		TimeLimit: pp.remaining(),
		MaxDepth:  pp.maxTimestep,
	})
	pp.opts.observer.OnSearch(pp.name, expanded, path != nil)
	return path
}

// register stores agent id's path and pads the table so every planned agent
// is recorded up to the longest path.
func (pp *prioritizedPlanner) register(id int, path core.Path) {
	makespan := pp.table.Makespan()
	pathEnd := len(path) - 1

	if pathEnd > makespan {
		for j, p := range pp.paths {
			if p == nil || makespan < 0 {
				continue
			}
			last := p[len(p)-1]
			for t := makespan + 1; t <= pathEnd; t++ {
				pp.table.Set(t, last, j)
			}
		}
	}
	pp.table.Register(id, path, 0)
	for t := pathEnd + 1; t <= makespan; t++ {
		pp.table.Set(t, path[pathEnd], id)
	}
	pp.paths[id] = path
}
