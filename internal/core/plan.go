package core

import (
	"errors"
	"fmt"
)

// ErrInvalidPlan is wrapped by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is a time-indexed sequence of configurations, t = 0..Makespan().
type Plan struct {
	configs []Config
}

// Add appends the configuration of the next timestep.
func (p *Plan) Add(c Config) {
	p.configs = append(p.configs, c.Clone())
}

// Get returns the configuration at timestep t.
func (p *Plan) Get(t int) Config {
	if t < 0 || t >= len(p.configs) {
		return nil
	}
	return p.configs[t]
}

// Last returns the final configuration, or nil for an empty plan.
func (p *Plan) Last() Config {
	if len(p.configs) == 0 {
		return nil
	}
	return p.configs[len(p.configs)-1]
}

// Len returns the number of configurations.
func (p *Plan) Len() int { return len(p.configs) }

func (p *Plan) Empty() bool { return len(p.configs) == 0 }

// Makespan is the last timestep, 0 for an empty plan.
func (p *Plan) Makespan() int {
	if len(p.configs) == 0 {
		return 0
	}
	return len(p.configs) - 1
}

// NumAgents returns the number of agents in the plan.
func (p *Plan) NumAgents() int {
	if len(p.configs) == 0 {
		return 0
	}
	return len(p.configs[0])
}

// Path extracts agent i's path.
func (p *Plan) Path(i int) Path {
	path := make(Path, len(p.configs))
	for t, c := range p.configs {
		path[t] = c[i]
	}
	return path
}

// PlanFromPaths builds a plan from per-agent paths, padding shorter paths
// with their final node.
func PlanFromPaths(paths []Path) *Plan {
	plan := &Plan{}
	makespan := 0
	for _, path := range paths {
		makespan = max(makespan, len(path))
	}
	for t := 0; t < makespan; t++ {
		c := make(Config, len(paths))
		for i, path := range paths {
			if len(path) == 0 {
				c[i] = NilNode
				continue
			}
			c[i] = path[min(t, len(path)-1)]
		}
		plan.configs = append(plan.configs, c)
	}
	return plan
}

// Append concatenates other onto p. The first configuration of other must
// equal the last configuration of p; it is not duplicated.
func (p *Plan) Append(other *Plan) error {
	if other.Empty() {
		return nil
	}
	if p.Empty() {
		for _, c := range other.configs {
			p.Add(c)
		}
		return nil
	}
	if !p.Last().Equal(other.configs[0]) {
		return fmt.Errorf("%w: cannot append, configurations at junction differ", ErrInvalidPlan)
	}
	for _, c := range other.configs[1:] {
		p.Add(c)
	}
	return nil
}

// PathCost returns agent i's cost: the timestep after which it never leaves
// its final node.
func (p *Plan) PathCost(i int) int {
	return p.Path(i).Cost()
}

// SOC returns the sum of costs over all agents.
func (p *Plan) SOC() int {
	soc := 0
	for i := 0; i < p.NumAgents(); i++ {
		soc += p.PathCost(i)
	}
	return soc
}

// Validate checks a MAPF plan: starts, goals and every transition.
func (p *Plan) Validate(inst *MAPFInstance) error {
	if err := p.validateStart(inst.Starts); err != nil {
		return err
	}
	if !p.Last().Equal(inst.Goals) {
		return fmt.Errorf("%w: final configuration does not match goals", ErrInvalidPlan)
	}
	return p.ValidateTransitions(inst.G)
}

// ValidatePartial checks a MAPF plan that stopped before reaching the goals:
// starts and every transition. An empty plan passes.
func (p *Plan) ValidatePartial(inst *MAPFInstance) error {
	if p.Empty() {
		return nil
	}
	if err := p.validateStart(inst.Starts); err != nil {
		return err
	}
	return p.ValidateTransitions(inst.G)
}

// ValidateMAPD checks a MAPD plan: starts and every transition.
func (p *Plan) ValidateMAPD(inst *MAPDInstance) error {
	if err := p.validateStart(inst.Starts); err != nil {
		return err
	}
	return p.ValidateTransitions(inst.G)
}

func (p *Plan) validateStart(starts Config) error {
	if p.Empty() {
		return fmt.Errorf("%w: empty", ErrInvalidPlan)
	}
	if !p.configs[0].Equal(starts) {
		return fmt.Errorf("%w: initial configuration does not match starts", ErrInvalidPlan)
	}
	return nil
}

// ValidateTransitions checks every configuration for vertex collisions and
// every step for non-adjacent moves and swaps.
func (p *Plan) ValidateTransitions(g Graph) error {
	for t, c := range p.configs {
		if len(c) != p.NumAgents() {
			return fmt.Errorf("%w: t=%d has %d agents, want %d", ErrInvalidPlan, t, len(c), p.NumAgents())
		}
		if i, j, ok := vertexCollision(c); ok {
			return fmt.Errorf("%w: vertex collision between %d and %d at t=%d, %s",
				ErrInvalidPlan, i, j, t, g.Pos(c[i]))
		}
		if t == 0 {
			continue
		}
		prev := p.configs[t-1]
		for i := range c {
			if c[i] != prev[i] && !IsAdjacent(g, prev[i], c[i]) {
				return fmt.Errorf("%w: agent %d jumps %s->%s at t=%d",
					ErrInvalidPlan, i, g.Pos(prev[i]), g.Pos(c[i]), t)
			}
		}
		if i, j, ok := swapCollision(prev, c); ok {
			return fmt.Errorf("%w: swap between %d and %d at t=%d", ErrInvalidPlan, i, j, t)
		}
	}
	return nil
}

func vertexCollision(c Config) (int, int, bool) {
	seen := make(map[NodeID]int, len(c))
	for i, v := range c {
		if j, ok := seen[v]; ok {
			return j, i, true
		}
		seen[v] = i
	}
	return 0, 0, false
}

func swapCollision(prev, next Config) (int, int, bool) {
	at := make(map[NodeID]int, len(prev))
	for i, v := range prev {
		at[v] = i
	}
	for i := range next {
		if next[i] == prev[i] {
			continue
		}
		j, ok := at[next[i]]
		if ok && j != i && next[j] == prev[i] {
			return min(i, j), max(i, j), true
		}
	}
	return 0, 0, false
}
