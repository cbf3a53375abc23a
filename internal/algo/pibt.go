package algo

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// PIBT is Priority Inheritance with Backtracking for one-shot MAPF. Each
// timestep every agent commits one move; agents blocked by a lower-priority
// agent push it away by lending their priority.
type PIBT struct {
	planner
}

// NewPIBT creates a PIBT solver.
func NewPIBT(opts ...Option) *PIBT {
	return &PIBT{planner: newPlanner("PIBT", opts)}
}

type pibtAgent struct {
	id         int
	now        core.NodeID
	next       core.NodeID
	goal       core.NodeID
	elapsed    int // steps since last at goal
	initDist   int
	tieBreaker float64
}

type pibtRun struct {
	g      core.Graph
	rnd    *rand.Rand
	dist   AgentDistances
	agents []pibtAgent

	occupiedNow  reservation
	occupiedNext reservation
}

// Solve plans until all agents stand on their goals in the same timestep.
func (s *PIBT) Solve(inst *core.MAPFInstance) (*Result, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return s.solve(inst, nil), nil
}

func (s *PIBT) solve(inst *core.MAPFInstance, dist AgentDistances) *Result {
	s.begin(&inst.Problem)
	res := &Result{Plan: &core.Plan{}}

	if dist == nil {
		s.log.Debug("pre-processing, create distance table by BFS")
		dist = NewAgentDistances(inst.G, inst.Goals)
		res.PreprocessingTime = s.elapsed()
	}
	res.LBSOC, res.LBMakespan = dist.LowerBounds(inst.Starts)

	run := &pibtRun{
		g:            inst.G,
		rnd:          inst.Rand,
		dist:         dist,
		agents:       make([]pibtAgent, inst.NumAgents()),
		occupiedNow:  newReservation(inst.G.Size()),
		occupiedNext: newReservation(inst.G.Size()),
	}
	for i := range run.agents {
		d := 0
		if !s.opts.disableDistInit {
			d = dist.Dist(i, inst.Starts[i])
		}
		run.agents[i] = pibtAgent{
			id:         i,
			now:        inst.Starts[i],
			next:       core.NilNode,
			goal:       inst.Goals[i],
			initDist:   d,
			tieBreaker: run.rnd.Float64(),
		}
		run.occupiedNow.set(inst.Starts[i], i)
	}
	res.Plan.Add(inst.Starts)

	order := make([]int, len(run.agents))
	for i := range order {
		order[i] = i
	}

	for timestep := 0; ; {
		s.log.Debug("step", "elapsed", s.elapsed(), "timestep", timestep)

		slices.SortFunc(order, run.compareAgents)
		for _, i := range order {
			if run.agents[i].next == core.NilNode {
				run.funcPIBT(i, noAgent)
			}
		}

		cfg, reached := run.act()
		res.Plan.Add(cfg)
		timestep++
		s.opts.observer.OnStep(s.name, timestep)

		if reached {
			res.Solved = true
			break
		}
		if timestep >= s.maxTimestep || s.overCompTime() {
			break
		}
	}
	return s.finish(res)
}

// compareAgents orders higher priority first: longer since goal, then
// farther initial distance, then the random tie-breaker.
func (r *pibtRun) compareAgents(i, j int) int {
	a, b := &r.agents[i], &r.agents[j]
	if c := cmp.Compare(b.elapsed, a.elapsed); c != 0 {
		return c
	}
	if c := cmp.Compare(b.initDist, a.initDist); c != 0 {
		return c
	}
	if c := cmp.Compare(b.tieBreaker, a.tieBreaker); c != 0 {
		return c
	}
	return cmp.Compare(i, j)
}

// funcPIBT decides agent ai's next node. aj is the agent that lent its
// priority, or noAgent; ai may not move onto aj's current node. It reports
// false when ai had to stay in place.
func (r *pibtRun) funcPIBT(ai, aj int) bool {
	a := &r.agents[ai]

	cands := expansion(r.g, a.now)
	r.rnd.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
	slices.SortStableFunc(cands, func(v, u core.NodeID) int {
		if c := cmp.Compare(r.dist.Dist(ai, v), r.dist.Dist(ai, u)); c != 0 {
			return c
		}
		return preferFree(r.occupiedNow, v, u)
	})

	for _, u := range cands {
		if !r.occupiedNext.free(u) {
			continue
		}
		if aj != noAgent && u == r.agents[aj].now {
			continue
		}

		r.occupiedNext.set(u, ai)
		a.next = u

		if ak := r.occupiedNow.get(u); ak != noAgent && ak != ai && r.agents[ak].next == core.NilNode {
			if !r.funcPIBT(ak, ai) {
				r.occupiedNext.release(u, ai)
				continue
			}
		}
		return true
	}

	r.occupiedNext.set(a.now, ai)
	a.next = a.now
	return false
}

// act applies every decided move and resets the step tables. It reports
// whether every agent is now on its goal.
func (r *pibtRun) act() (core.Config, bool) {
	cfg := make(core.Config, len(r.agents))
	reached := true
	for i := range r.agents {
		a := &r.agents[i]
		r.occupiedNow.release(a.now, i)
		r.occupiedNext.clear(a.next)

		cfg[i] = a.next
		r.occupiedNow.set(a.next, i)
		reached = reached && a.next == a.goal
		if a.next == a.goal {
			a.elapsed = 0
		} else {
			a.elapsed++
		}
		a.now = a.next
		a.next = core.NilNode
	}
	return cfg, reached
}

// preferFree orders nodes unoccupied in now before occupied ones.
func preferFree(now reservation, v, u core.NodeID) int {
	vf, uf := now.free(v), now.free(u)
	switch {
	case vf && !uf:
		return -1
	case !vf && uf:
		return 1
	}
	return 0
}
