package algo

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// PIBTMAPD runs PIBT over a stream of pickup-and-delivery tasks. Idle agents
// head for the nearest unassigned pickup; loaded agents head for the delivery
// and outrank idle ones.
type PIBTMAPD struct {
	planner
}

// NewPIBTMAPD creates the MAPD variant of PIBT.
func NewPIBTMAPD(opts ...Option) *PIBTMAPD {
	return &PIBTMAPD{planner: newPlanner("PIBT", opts)}
}

type mapdAgent struct {
	now        core.NodeID
	next       core.NodeID
	goal       core.NodeID
	elapsed    int
	tieBreaker float64
	task       *core.Task // carried
	target     *core.Task // heading to its pickup
}

type pibtMAPDRun struct {
	*planner
	inst   *core.MAPDInstance
	g      core.Graph
	rnd    *rand.Rand
	dist   distFunc
	agents []mapdAgent

	occupiedNow  reservation
	occupiedNext reservation
}

// Solve plans until TaskNum tasks are closed or a limit is hit.
func (s *PIBTMAPD) Solve(inst *core.MAPDInstance) (*Result, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Plan: &core.Plan{}}
	dist := s.preprocess(inst, res)
	s.begin(&inst.Problem)

	run := &pibtMAPDRun{
		planner:      &s.planner,
		inst:         inst,
		g:            inst.G,
		rnd:          inst.Rand,
		dist:         dist,
		agents:       make([]mapdAgent, inst.NumAgents()),
		occupiedNow:  newReservation(inst.G.Size()),
		occupiedNext: newReservation(inst.G.Size()),
	}
	for i, v := range inst.Starts {
		run.agents[i] = mapdAgent{
			now:        v,
			next:       core.NilNode,
			goal:       v,
			tieBreaker: run.rnd.Float64(),
		}
		run.occupiedNow.set(v, i)
	}
	res.Plan.Add(inst.Starts)

	order := make([]int, len(run.agents))
	for i := range order {
		order[i] = i
	}

	for {
		s.log.Debug("step",
			"elapsed", s.elapsed(),
			"timestep", inst.Timestep+1,
			"open_tasks", len(inst.Open),
			"closed_tasks", len(inst.Closed),
			"task_num", inst.TaskNum)

		targets, tasks := run.assign()
		res.Targets = append(res.Targets, targets)
		res.Tasks = append(res.Tasks, tasks)

		slices.SortFunc(order, run.compareAgents)
		for _, i := range order {
			if run.agents[i].next == core.NilNode {
				run.funcPIBT(i, noAgent)
			}
		}

		res.Plan.Add(run.act())
		inst.Update()
		s.opts.observer.OnStep(s.name, inst.Timestep)

		if inst.Finished() {
			res.Solved = true
			break
		}
		if inst.Timestep >= s.maxTimestep || s.overCompTime() {
			break
		}
	}

	targets, tasks := run.history()
	res.Targets = append(res.Targets, targets)
	res.Tasks = append(res.Tasks, tasks)
	return s.finish(res), nil
}

// preprocess builds the all-pairs table when enabled. Its time is reported
// separately and not charged to the computation budget.
func (p *planner) preprocess(inst *core.MAPDInstance, res *Result) distFunc {
	if !p.opts.useDistTable {
		return inst.G.PathDist
	}
	p.begin(&inst.Problem)
	p.log.Debug("pre-processing, create distance table by Floyd-Warshall")
	dist := mapdDistances(inst.G, true)
	res.PreprocessingTime = p.elapsed()
	return dist
}

// assign gives idle agents a target: a task whose pickup they stand on is
// assigned at once, otherwise the nearest unassigned pickup becomes the goal.
func (r *pibtMAPDRun) assign() (core.Config, []core.TaskID) {
	var unassigned []*core.Task
	for _, task := range r.inst.Open {
		if !task.Assigned {
			unassigned = append(unassigned, task)
		}
	}

	for i := range r.agents {
		a := &r.agents[i]
		if a.task != nil {
			continue
		}
		a.target = nil
		a.goal = a.now
		minDist := r.g.Size()

		r.rnd.Shuffle(len(unassigned), func(x, y int) {
			unassigned[x], unassigned[y] = unassigned[y], unassigned[x]
		})
		for k, task := range unassigned {
			d := r.dist(a.now, task.Pickup)
			if d == 0 {
				r.assignTask(i, task)
				unassigned = slices.Delete(unassigned, k, k+1)
				break
			}
			if d < minDist {
				minDist = d
				a.goal = task.Pickup
				a.target = task
			}
		}
	}
	return r.history()
}

func (r *pibtMAPDRun) assignTask(i int, task *core.Task) {
	a := &r.agents[i]
	a.task = task
	a.target = nil
	a.goal = task.Delivery
	task.Assigned = true
	r.log.Debug("assign task", "task", task.ID, "agent", i,
		"pickup", r.g.Pos(task.Pickup), "delivery", r.g.Pos(task.Delivery))
}

func (r *pibtMAPDRun) history() (core.Config, []core.TaskID) {
	targets := make(core.Config, len(r.agents))
	tasks := make([]core.TaskID, len(r.agents))
	for i, a := range r.agents {
		targets[i] = a.goal
		tasks[i] = core.NilTask
		if a.task != nil {
			tasks[i] = a.task.ID
		}
	}
	return targets, tasks
}

// compareAgents puts loaded agents first, then longer since goal, then the
// random tie-breaker.
func (r *pibtMAPDRun) compareAgents(i, j int) int {
	a, b := &r.agents[i], &r.agents[j]
	if (a.task != nil) != (b.task != nil) {
		if a.task != nil {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(b.elapsed, a.elapsed); c != 0 {
		return c
	}
	if c := cmp.Compare(b.tieBreaker, a.tieBreaker); c != 0 {
		return c
	}
	return cmp.Compare(i, j)
}

// funcPIBT mirrors the MAPF version with distances to the current goal.
// Equal distances prefer nodes unoccupied now; remaining ties keep the
// shuffled order.
func (r *pibtMAPDRun) funcPIBT(ai, aj int) bool {
	a := &r.agents[ai]

	cands := expansion(r.g, a.now)
	r.rnd.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
	slices.SortStableFunc(cands, func(v, u core.NodeID) int {
		if c := cmp.Compare(r.dist(v, a.goal), r.dist(u, a.goal)); c != 0 {
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

// act applies the decided moves, carries tasks along and closes or picks up
// tasks at their locations.
func (r *pibtMAPDRun) act() core.Config {
	cfg := make(core.Config, len(r.agents))
	for i := range r.agents {
		a := &r.agents[i]
		r.occupiedNow.release(a.now, i)
		r.occupiedNext.clear(a.next)

		cfg[i] = a.next
		r.occupiedNow.set(a.next, i)
		if a.next == a.goal {
			a.elapsed = 0
		} else {
			a.elapsed++
		}
		a.now = a.next
		a.next = core.NilNode

		switch {
		case a.task != nil:
			a.task.Current = a.now
			if a.task.Done() {
				r.log.Debug("finish task", "task", a.task.ID, "agent", i)
				a.task = nil
			}
		case a.target != nil && a.target.Pickup == a.now && !a.target.Assigned:
			r.assignTask(i, a.target)
		}
	}
	return cfg
}
