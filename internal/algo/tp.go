package algo

import (
	"fmt"
	"slices"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// TP is Token Passing for MAPD. Each agent owns an append-only token path;
// an agent whose token ends at the current timestep takes a task, parks, or
// moves to a free endpoint. TP assumes a well-formed instance.
type TP struct {
	planner
}

// NewTP creates a token passing solver.
func NewTP(opts ...Option) *TP {
	return &TP{planner: newPlanner("TP", opts)}
}

type tpAgent struct {
	token  core.Path
	task   *core.Task
	loaded bool
}

func (a *tpAgent) tip() core.NodeID { return a.token[len(a.token)-1] }

type tpRun struct {
	*planner
	inst      *core.MAPDInstance
	g         core.Graph
	dist      distFunc
	agents    []tpAgent
	conflicts *PathTable
}

// Solve plans until TaskNum tasks are closed or a limit is hit. It fails with
// ErrNotWellFormed when an idle agent has no endpoint to retreat to or a
// token path cannot be extended.
func (s *TP) Solve(inst *core.MAPDInstance) (*Result, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Plan: &core.Plan{}}
	dist := s.preprocess(inst, res)
	s.begin(&inst.Problem)

	run := &tpRun{
		planner:   &s.planner,
		inst:      inst,
		g:         inst.G,
		dist:      dist,
		agents:    make([]tpAgent, inst.NumAgents()),
		conflicts: NewPathTable(inst.G.Size()),
	}
	for i, v := range inst.Starts {
		run.agents[i].token = core.Path{v}
		run.conflicts.Set(0, v, i)
	}
	res.Plan.Add(inst.Starts)

	for {
		s.log.Debug("step",
			"elapsed", s.elapsed(),
			"timestep", inst.Timestep+1,
			"open_tasks", len(inst.Open),
			"closed_tasks", len(inst.Closed),
			"task_num", inst.TaskNum)

		targets, tasks, err := run.plan()
		if err != nil {
			if s.overCompTime() {
				s.log.Debug("timeout", "elapsed", s.elapsed())
				break
			}
			return nil, err
		}
		res.Targets = append(res.Targets, targets)
		res.Tasks = append(res.Tasks, tasks)

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

	targets := make(core.Config, len(run.agents))
	tasks := make([]core.TaskID, len(run.agents))
	for i := range run.agents {
		a := &run.agents[i]
		targets[i] = a.tip()
		tasks[i] = taskID(a.task)
	}
	res.Targets = append(res.Targets, targets)
	res.Tasks = append(res.Tasks, tasks)
	return s.finish(res), nil
}

// plan extends the token of every agent whose token ends now and returns
// the targets and tasks of this timestep.
func (r *tpRun) plan() (core.Config, []core.TaskID, error) {
	now := r.inst.Timestep
	var unassigned []*core.Task
	for _, task := range r.inst.Open {
		if !task.Assigned {
			unassigned = append(unassigned, task)
		}
	}

	targets := make(core.Config, len(r.agents))
	tasks := make([]core.TaskID, len(r.agents))
	for i := range r.agents {
		a := &r.agents[i]
		tasks[i] = taskID(a.task)

		if len(a.token)-1 != now {
			switch {
			case a.task == nil:
				targets[i] = a.tip()
			case a.loaded:
				targets[i] = a.task.Delivery
			default:
				targets[i] = a.task.Pickup
			}
			continue
		}

		vNow := a.tip()
		if task := r.nearestTask(i, unassigned); task != nil {
			a.task = task
			task.Assigned = true
			tasks[i] = task.ID
			targets[i] = task.Pickup
			r.log.Debug("assign task", "task", task.ID, "agent", i,
				"pickup", r.g.Pos(task.Pickup), "delivery", r.g.Pos(task.Delivery))

			if err := r.updatePath(i, task.Pickup); err != nil {
				return nil, nil, err
			}
			if err := r.updatePath(i, task.Delivery); err != nil {
				return nil, nil, err
			}
			continue
		}

		if !deliversTo(unassigned, vNow) {
			a.token = append(a.token, vNow)
			r.conflicts.Set(now+1, vNow, i)
			targets[i] = vNow
			continue
		}

		// standing on a pending delivery location, move aside
		target := r.freeEndpoint(i, unassigned)
		if target == core.NilNode {
			return nil, nil, fmt.Errorf("%w: no free endpoint for agent %d at %s",
				ErrNotWellFormed, i, r.g.Pos(vNow))
		}
		if err := r.updatePath(i, target); err != nil {
			return nil, nil, err
		}
		targets[i] = a.tip()
	}
	return targets, tasks, nil
}

// nearestTask picks the unassigned task with the closest pickup whose
// pickup and delivery are not where another token ends.
func (r *tpRun) nearestTask(i int, unassigned []*core.Task) *core.Task {
	vNow := r.agents[i].tip()
	var best *core.Task
	bestDist := 0
	for _, task := range unassigned {
		if task.Assigned || r.tipOfOther(i, task.Pickup) || r.tipOfOther(i, task.Delivery) {
			continue
		}
		if d := r.dist(vNow, task.Pickup); best == nil || d < bestDist {
			best, bestDist = task, d
		}
	}
	return best
}

// freeEndpoint returns the closest endpoint that is neither a pending
// delivery location nor the end of another token.
func (r *tpRun) freeEndpoint(i int, unassigned []*core.Task) core.NodeID {
	loc := r.agents[i].tip()
	target := core.NilNode
	best := r.g.Size()
	for _, p := range r.inst.Endpoints() {
		if deliversTo(unassigned, p) || r.tipOfOther(i, p) {
			continue
		}
		if d := r.dist(loc, p); d < best {
			target, best = p, d
		}
	}
	return target
}

func (r *tpRun) tipOfOther(i int, v core.NodeID) bool {
	for j := range r.agents {
		if j != i && r.agents[j].tip() == v {
			return true
		}
	}
	return false
}

func deliversTo(tasks []*core.Task, v core.NodeID) bool {
	return slices.ContainsFunc(tasks, func(t *core.Task) bool {
		return !t.Assigned && t.Delivery == v
	})
}

// updatePath extends agent i's token to g, arriving after the last time any
// other token visits g. The search avoids conflict table entries and the
// ends of other tokens once those tokens run out.
func (r *tpRun) updatePath(i int, g core.NodeID) error {
	a := &r.agents[i]
	s := a.tip()
	current := len(a.token) - 1
	if r.overCompTime() {
		return fmt.Errorf("%w: out of time extending agent %d", ErrSearchFailed, i)
	}

	maxConstraintTime := current
	for j := range r.agents {
		if j == i {
			continue
		}
		token := r.agents[j].token
		for t := len(token) - 1; t > maxConstraintTime; t-- {
			if token[t] == g {
				maxConstraintTime = t
				break
			}
		}
	}

	tokenEnds := newReservation(r.g.Size())
	for j := range r.agents {
		if j != i {
			tokenEnds.set(r.agents[j].tip(), j)
		}
	}

	// past the last registered timestep only token ends block, so a goal
	// that is reachable at all is reached within Size more steps
	depth := max(r.conflicts.Makespan(), maxConstraintTime) - current + r.g.Size()

	path, expanded := SpaceTimeAStar(r.g, SearchParams{
		Start: s,
		F:     func(n *SearchNode) int { return n.G + r.dist(n.V, g) },
		IsGoal: func(n *SearchNode) bool {
			return n.V == g && n.G+current > maxConstraintTime
		},
		Invalid: func(m *SearchNode) bool {
			t := current + m.G
			if k := tokenEnds.get(m.V); k != noAgent && len(r.agents[k].token)-1 < t {
				return true
			}
			return r.conflicts.VertexConflict(t, m.V) ||
				r.conflicts.SwapConflict(t, m.Parent.V, m.V)
		},
		TimeLimit: r.remaining(),
		MaxDepth:  depth,
	})
	r.opts.observer.OnSearch(r.name, expanded, path != nil)
	if path == nil {
		return fmt.Errorf("%w: agent %d from %s to %s: %w",
			ErrNotWellFormed, i, r.g.Pos(s), r.g.Pos(g), ErrSearchFailed)
	}

	r.conflicts.Register(i, path, current)
	a.token = append(a.token, path[1:]...)
	return nil
}

// act moves every agent one step along its token. Loaded tasks follow their
// agent; a task is finished when the token ends at its delivery.
func (r *tpRun) act() core.Config {
	next := r.inst.Timestep + 1
	cfg := make(core.Config, len(r.agents))
	for i := range r.agents {
		a := &r.agents[i]
		v := a.token[next]
		cfg[i] = v
		if a.task == nil {
			continue
		}

		end := next == len(a.token)-1
		if a.loaded && (v != a.task.Delivery || end) {
			a.task.Current = v
		}
		switch {
		case a.loaded && v == a.task.Delivery && end:
			r.log.Debug("finish task", "task", a.task.ID, "agent", i)
			a.task = nil
			a.loaded = false
		case !a.loaded && v == a.task.Pickup:
			a.loaded = true
		}
	}
	return cfg
}

func taskID(t *core.Task) core.TaskID {
	if t == nil {
		return core.NilTask
	}
	return t.ID
}
