package algo

import (
	"slices"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// PIBTPlus runs PIBT for as many steps as the makespan lower bound and, when
// that is not enough, completes the plan with HCA from the last
// configuration.
type PIBTPlus struct {
	planner
	inner []Option
}

// NewPIBTPlus creates a PIBT+ solver.
func NewPIBTPlus(opts ...Option) *PIBTPlus {
	// nested runs report through the PIBT_PLUS result only
	inner := append(slices.Clone(opts), WithObserver(nopObserver{}))
	return &PIBTPlus{planner: newPlanner("PIBT_PLUS", opts), inner: inner}
}

// Solve returns an unsolved result rather than an error when neither phase
// reaches all goals within the limits.
func (s *PIBTPlus) Solve(inst *core.MAPFInstance) (*Result, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	s.begin(&inst.Problem)

	s.log.Debug("pre-processing, create distance table by BFS")
	dist := NewAgentDistances(inst.G, inst.Goals)
	res := &Result{PreprocessingTime: s.elapsed()}
	res.LBSOC, res.LBMakespan = dist.LowerBounds(inst.Starts)

	s.log.Debug("run PIBT until timestep", "lb_makespan", res.LBMakespan)
	initial := NewPIBT(s.inner...).solve(
		inst.Sub(inst.Starts, inst.Goals, inst.MaxCompTime, res.LBMakespan), dist)
	res.Plan = initial.Plan
	if initial.Solved {
		res.Solved = true
		return s.finish(res), nil
	}

	started := time.Now()
	s.log.Debug("complement the remaining plan with HCA", "elapsed", s.elapsed())
	rest := inst.Sub(res.Plan.Last(), inst.Goals, s.remaining(), inst.MaxTimestep-res.LBMakespan)
	if rest.MaxTimestep > 0 && rest.MaxCompTime > 0 {
		complement := NewHCA(s.inner...).solve(rest, dist)
		if complement.Solved {
			if err := res.Plan.Append(complement.Plan); err != nil {
				return nil, err
			}
			res.Solved = true
		}
	}
	res.ComplementTime = time.Since(started)
	return s.finish(res), nil
}
