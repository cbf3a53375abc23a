package core

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Defaults applied when an instance does not set a value.
const (
	DefaultSeed          uint64  = 0
	DefaultMaxTimestep           = 5000
	DefaultMaxCompTime           = 60 * time.Second
	DefaultTaskFrequency float64 = 1
	DefaultTaskNum               = 10
)

// NewRand returns the seeded random source every instance threads through
// generation and planning.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Problem holds what MAPF and MAPD instances share.
type Problem struct {
	Name        string
	G           Graph
	Rand        *rand.Rand
	Starts      Config
	MaxTimestep int
	MaxCompTime time.Duration
}

func newProblem(g Graph, starts Config, r *rand.Rand) Problem {
	if r == nil {
		r = NewRand(DefaultSeed)
	}
	return Problem{
		G:           g,
		Rand:        r,
		Starts:      starts,
		MaxTimestep: DefaultMaxTimestep,
		MaxCompTime: DefaultMaxCompTime,
	}
}

// NumAgents returns the number of agents.
func (p *Problem) NumAgents() int { return len(p.Starts) }

func (p *Problem) validateStarts() error {
	if len(p.Starts) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalidInstance)
	}
	if len(p.Starts) > len(p.G.Nodes()) {
		return fmt.Errorf("%w: %d agents, %d nodes", ErrTooManyAgents, len(p.Starts), len(p.G.Nodes()))
	}
	seen := make(map[NodeID]int, len(p.Starts))
	for i, v := range p.Starts {
		if !p.G.Has(v) {
			return fmt.Errorf("%w: start of agent %d", ErrNodeNotFound, i)
		}
		if j, ok := seen[v]; ok {
			return fmt.Errorf("%w: agents %d and %d at %s", ErrDuplicateStart, j, i, p.G.Pos(v))
		}
		seen[v] = i
	}
	if p.MaxTimestep <= 0 {
		return fmt.Errorf("%w: max timestep %d", ErrInvalidInstance, p.MaxTimestep)
	}
	if p.MaxCompTime <= 0 {
		return fmt.Errorf("%w: max comp time %s", ErrInvalidInstance, p.MaxCompTime)
	}
	return nil
}

// MAPFInstance is a one-shot problem: every agent must reach its goal.
type MAPFInstance struct {
	Problem
	Goals Config
}

// NewMAPFInstance creates an instance with default limits.
func NewMAPFInstance(g Graph, starts, goals Config, r *rand.Rand) *MAPFInstance {
	return &MAPFInstance{Problem: newProblem(g, starts, r), Goals: goals}
}

// Sub returns an instance over the same graph and random source with new
// endpoints and limits.
func (inst *MAPFInstance) Sub(starts, goals Config, maxCompTime time.Duration, maxTimestep int) *MAPFInstance {
	sub := &MAPFInstance{Problem: inst.Problem, Goals: goals}
	sub.Starts = starts
	sub.MaxCompTime = maxCompTime
	sub.MaxTimestep = maxTimestep
	return sub
}

// Validate rejects instances planners cannot start from.
func (inst *MAPFInstance) Validate() error {
	if err := inst.validateStarts(); err != nil {
		return err
	}
	if len(inst.Goals) != len(inst.Starts) {
		return fmt.Errorf("%w: %d starts, %d goals", ErrInvalidInstance, len(inst.Starts), len(inst.Goals))
	}
	seen := make(map[NodeID]int, len(inst.Goals))
	for i, v := range inst.Goals {
		if !inst.G.Has(v) {
			return fmt.Errorf("%w: goal of agent %d", ErrNodeNotFound, i)
		}
		if j, ok := seen[v]; ok {
			return fmt.Errorf("%w: agents %d and %d at %s", ErrDuplicateGoal, j, i, inst.G.Pos(v))
		}
		seen[v] = i
	}
	return nil
}

// RandomStartsGoals draws n distinct starts and n distinct goals with no
// agent starting on its own goal.
func RandomStartsGoals(g Graph, n int, r *rand.Rand) (Config, Config, error) {
	nodes := g.Nodes()
	if n > len(nodes) || (n == len(nodes) && n == 1) {
		return nil, nil, fmt.Errorf("%w: %d agents, %d nodes", ErrTooManyAgents, n, len(nodes))
	}

	starts := slices.Clone(nodes)
	r.Shuffle(len(starts), func(i, j int) { starts[i], starts[j] = starts[j], starts[i] })
	starts = starts[:n]

	goals := slices.Clone(nodes)
	for {
		r.Shuffle(len(goals), func(i, j int) { goals[i], goals[j] = goals[j], goals[i] })
		ok := true
		for i := 0; i < n; i++ {
			if goals[i] == starts[i] {
				ok = false
				break
			}
		}
		if ok {
			return Config(starts), Config(slices.Clone(goals[:n])), nil
		}
	}
}

// WellFormedStartsGoals draws start/goal pairs such that each agent can reach
// its goal without crossing any other agent's start or goal. Nodes on earlier
// agents' paths are not used as starts or goals.
func WellFormedStartsGoals(g Graph, n int, r *rand.Rand) (Config, Config, error) {
	nodes := g.Nodes()
	if 2*n > len(nodes) {
		return nil, nil, fmt.Errorf("%w: %d agents, %d nodes", ErrTooManyAgents, n, len(nodes))
	}
	maxAttempts := 1000 * (n + 1)

	var starts, goals Config
	var startsGoals []NodeID
	prohibited := make(map[NodeID]bool)
	free := func() []NodeID {
		var out []NodeID
		for _, v := range nodes {
			if !prohibited[v] {
				out = append(out, v)
			}
		}
		return out
	}

	for attempts := 0; len(goals) < n; attempts++ {
		if attempts >= maxAttempts {
			return nil, nil, fmt.Errorf("%w: could not place %d well-formed agents", ErrTooManyAgents, n)
		}
		cands := free()
		if len(cands) < 2 {
			return nil, nil, fmt.Errorf("%w: ran out of free nodes after %d agents", ErrTooManyAgents, len(goals))
		}
		s := cands[r.IntN(len(cands))]
		gl := cands[r.IntN(len(cands))]
		if gl == s {
			continue
		}
		path := g.Path(s, gl, startsGoals)
		if len(path) == 0 {
			continue
		}
		starts = append(starts, s)
		goals = append(goals, gl)
		startsGoals = append(startsGoals, s, gl)
		for _, v := range path {
			prohibited[v] = true
		}
	}
	return starts, goals, nil
}

// MAPDInstance is a lifelong problem: tasks keep appearing until TaskNum have
// been issued, and the run ends once all of them are delivered.
type MAPDInstance struct {
	Problem
	TaskNum       int
	TaskFrequency float64

	Timestep int
	Open     []*Task
	Closed   []*Task

	pickups    []NodeID
	deliveries []NodeID
	endpoints  []NodeID
	tasks      TaskFactory
}

// NewMAPDInstance creates an instance and issues the tasks of timestep 0.
func NewMAPDInstance(w *Workspace, starts Config, taskNum int, freq float64, r *rand.Rand) (*MAPDInstance, error) {
	inst := &MAPDInstance{
		Problem:       newProblem(w, starts, r),
		TaskNum:       taskNum,
		TaskFrequency: freq,
		Timestep:      -1,
		pickups:       w.Pickups(),
		deliveries:    w.Deliveries(),
		endpoints:     w.Endpoints(),
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	inst.Update()
	return inst, nil
}

// RandomMAPDStarts draws n distinct starts, restricted to parking endpoints
// when the workspace marks any.
func RandomMAPDStarts(w *Workspace, n int, r *rand.Rand) (Config, error) {
	cands := w.NonTaskEndpoints()
	if len(cands) == 0 {
		cands = w.Nodes()
	}
	if n > len(cands) {
		return nil, fmt.Errorf("%w: %d agents, %d candidate starts", ErrTooManyAgents, n, len(cands))
	}
	starts := slices.Clone(cands)
	r.Shuffle(len(starts), func(i, j int) { starts[i], starts[j] = starts[j], starts[i] })
	return Config(starts[:n]), nil
}

// Validate rejects instances planners cannot start from.
func (inst *MAPDInstance) Validate() error {
	if err := inst.validateStarts(); err != nil {
		return err
	}
	if inst.TaskNum <= 0 {
		return fmt.Errorf("%w: task num %d", ErrInvalidInstance, inst.TaskNum)
	}
	if inst.TaskFrequency <= 0 {
		return fmt.Errorf("%w: task frequency %g", ErrInvalidInstance, inst.TaskFrequency)
	}
	if len(inst.pickups) == 0 || len(inst.deliveries) == 0 {
		return fmt.Errorf("%w: no pickup or delivery locations", ErrInvalidInstance)
	}
	if len(inst.pickups) == 1 && len(inst.deliveries) == 1 && inst.pickups[0] == inst.deliveries[0] {
		return fmt.Errorf("%w: pickup and delivery locations coincide", ErrInvalidInstance)
	}
	return nil
}

// Endpoints returns the locations TP may park agents at.
func (inst *MAPDInstance) Endpoints() []NodeID { return inst.endpoints }

// Update closes delivered tasks, issues new ones and advances the timestep.
// Tasks closed here finish at the timestep being entered.
func (inst *MAPDInstance) Update() {
	open := make([]*Task, 0, len(inst.Open))
	for _, task := range inst.Open {
		if task.Done() {
			task.Finished = inst.Timestep + 1
			inst.Closed = append(inst.Closed, task)
			continue
		}
		open = append(open, task)
	}
	inst.Open = open

	if created := inst.tasks.Created(); created < inst.TaskNum {
		n := int(inst.TaskFrequency)
		if inst.TaskFrequency < 1 && inst.Rand.Float64() < inst.TaskFrequency {
			n = 1
		}
		n = min(n, inst.TaskNum-created)
		for i := 0; i < n; i++ {
			var p, d NodeID
			for {
				p = inst.pickups[inst.Rand.IntN(len(inst.pickups))]
				d = inst.deliveries[inst.Rand.IntN(len(inst.deliveries))]
				if p != d {
					break
				}
			}
			inst.Open = append(inst.Open, inst.tasks.New(p, d, inst.Timestep+1))
		}
	}

	inst.Timestep++
}

// Finished reports whether every task has been issued and delivered.
func (inst *MAPDInstance) Finished() bool {
	return len(inst.Closed) >= inst.TaskNum
}

// ServiceTime returns the total service time over closed tasks.
func (inst *MAPDInstance) ServiceTime() int {
	total := 0
	for _, t := range inst.Closed {
		total += t.ServiceTime()
	}
	return total
}

// AverageServiceTime returns the mean service time over closed tasks.
func (inst *MAPDInstance) AverageServiceTime() float64 {
	if len(inst.Closed) == 0 {
		return 0
	}
	return float64(inst.ServiceTime()) / float64(len(inst.Closed))
}
