package algo

import (
	"testing"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

func TestPIBT_DiagonalSwap(t *testing.T) {
	g := createGrid(2)
	starts := core.Config{node(t, g, 0, 0), node(t, g, 1, 1)}
	goals := core.Config{node(t, g, 1, 0), node(t, g, 0, 1)}
	inst := core.NewMAPFInstance(g, starts, goals, core.NewRand(0))

	res, err := NewPIBT().Solve(inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Solved {
		t.Fatal("diagonal swap not solved")
	}
	if err := res.Plan.Validate(inst); err != nil {
		t.Errorf("Validate: %v", err)
	}
	checkPlanInvariants(t, g, res.Plan)
}

func TestPIBT_CorridorNeverSwaps(t *testing.T) {
	g := parseGrid(t, "....")
	starts := core.Config{node(t, g, 0, 0), node(t, g, 3, 0)}
	goals := core.Config{node(t, g, 3, 0), node(t, g, 0, 0)}
	inst := core.NewMAPFInstance(g, starts, goals, core.NewRand(0))
	inst.MaxTimestep = 10

	res, err := NewPIBT().Solve(inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Solved {
		t.Fatal("agents cannot pass each other in a corridor")
	}
	if res.Plan.Makespan() != inst.MaxTimestep {
		t.Errorf("makespan = %d, want %d", res.Plan.Makespan(), inst.MaxTimestep)
	}
	checkPlanInvariants(t, g, res.Plan)

	waited := false
	for ts := 1; ts < res.Plan.Len(); ts++ {
		prev, cur := res.Plan.Get(ts-1), res.Plan.Get(ts)
		for i := range cur {
			if prev[i] == cur[i] {
				waited = true
			}
		}
	}
	if !waited {
		t.Error("expected at least one wait")
	}
}

func TestPIBT_RandomInstancesKeepInvariants(t *testing.T) {
	g := createGrid(8)
	for seed := uint64(0); seed < 5; seed++ {
		rnd := core.NewRand(seed)
		starts, goals, err := core.RandomStartsGoals(g, 12, rnd)
		if err != nil {
			t.Fatal(err)
		}
		inst := core.NewMAPFInstance(g, starts, goals, rnd)
		inst.MaxTimestep = 200

		res, err := NewPIBT().Solve(inst)
		if err != nil {
			t.Fatalf("seed %d: Solve: %v", seed, err)
		}
		checkPlanInvariants(t, g, res.Plan)
		if !res.Plan.Get(0).Equal(starts) {
			t.Errorf("seed %d: plan does not begin at starts", seed)
		}
		if res.Solved {
			if err := res.Plan.Validate(inst); err != nil {
				t.Errorf("seed %d: Validate: %v", seed, err)
			}
		}
	}
}

func TestPIBT_Deterministic(t *testing.T) {
	g := createGrid(6)
	run := func() *core.Plan {
		rnd := core.NewRand(42)
		starts, goals, err := core.RandomStartsGoals(g, 8, rnd)
		if err != nil {
			t.Fatal(err)
		}
		res, err := NewPIBT().Solve(core.NewMAPFInstance(g, starts, goals, rnd))
		if err != nil {
			t.Fatal(err)
		}
		return res.Plan
	}

	a, b := run(), run()
	if a.Len() != b.Len() {
		t.Fatalf("plan lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for ts := 0; ts < a.Len(); ts++ {
		if !a.Get(ts).Equal(b.Get(ts)) {
			t.Fatalf("plans differ at t=%d: %v vs %v", ts, a.Get(ts), b.Get(ts))
		}
	}
}

func TestPIBT_StopsAtCompTime(t *testing.T) {
	g := parseGrid(t, "....")
	starts := core.Config{node(t, g, 0, 0), node(t, g, 3, 0)}
	goals := core.Config{node(t, g, 3, 0), node(t, g, 0, 0)}
	inst := core.NewMAPFInstance(g, starts, goals, core.NewRand(0))
	inst.MaxCompTime = 1 // overrun after the first step

	obs := &stepCounter{}
	res, err := NewPIBT(WithObserver(obs)).Solve(inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Solved {
		t.Error("expected unsolved result")
	}
	if obs.steps == 0 || obs.steps >= core.DefaultMaxTimestep {
		t.Errorf("steps = %d, want a run cut short by the time limit", obs.steps)
	}
}

func TestPIBT_AgentsAlreadyAtGoals(t *testing.T) {
	g := createGrid(3)
	cfg := core.Config{0, 4, 8}
	inst := core.NewMAPFInstance(g, cfg, cfg, core.NewRand(0))

	res, err := NewPIBT(WithoutDistInit()).Solve(inst)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Solved {
		t.Fatal("not solved")
	}
	if res.Plan.SOC() != 0 || res.LBSOC != 0 {
		t.Errorf("soc = %d, lb = %d, want 0", res.Plan.SOC(), res.LBSOC)
	}
}
