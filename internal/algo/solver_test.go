package algo

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// createGrid creates a fully free n x n grid.
func createGrid(n int) *core.Workspace {
	return core.NewGrid(n, n)
}

// parseGrid builds a workspace from map rows, '.' free and '@' blocked.
func parseGrid(t *testing.T, rows ...string) *core.Workspace {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "type octile\nheight %d\nwidth %d\nmap\n", len(rows), len(rows[0]))
	for _, r := range rows {
		b.WriteString(r + "\n")
	}
	w, err := core.ParseMap(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	return w
}

// node returns the node at (x, y) or fails the test.
func node(t *testing.T, g core.Graph, x, y int) core.NodeID {
	t.Helper()
	v, ok := g.NodeAt(core.Pos{X: x, Y: y})
	if !ok {
		t.Fatalf("(%d,%d) is not a free cell", x, y)
	}
	return v
}

// checkPlanInvariants reports collisions, swaps and jumps.
func checkPlanInvariants(t *testing.T, g core.Graph, plan *core.Plan) {
	t.Helper()
	if plan.Empty() {
		t.Fatal("plan is empty")
	}
	if err := plan.ValidateTransitions(g); err != nil {
		t.Errorf("plan invalid: %v", err)
	}
	if c := FindFirstConflict(plan); c != nil {
		t.Errorf("plan has conflict: %v", c)
	}
}

type stepCounter struct {
	steps    int
	searches int
	finished []*Result
}

func (c *stepCounter) OnStep(string, int)         { c.steps++ }
func (c *stepCounter) OnSearch(string, int, bool) { c.searches++ }
func (c *stepCounter) OnFinish(res *Result)       { c.finished = append(c.finished, res) }

func TestRegistry(t *testing.T) {
	for _, name := range []string{"PIBT", "pibt_plus", "HCA"} {
		s, err := NewMAPFSolver(name)
		if err != nil {
			t.Fatalf("NewMAPFSolver(%q): %v", name, err)
		}
		if !strings.EqualFold(s.Name(), name) {
			t.Errorf("NewMAPFSolver(%q).Name() = %q", name, s.Name())
		}
	}
	for _, name := range []string{"PIBT", "TP"} {
		s, err := NewMAPDSolver(name)
		if err != nil {
			t.Fatalf("NewMAPDSolver(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("NewMAPDSolver(%q).Name() = %q", name, s.Name())
		}
	}

	if _, err := NewMAPFSolver("TP"); !errors.Is(err, ErrUnknownSolver) {
		t.Errorf("TP as MAPF solver: err = %v, want ErrUnknownSolver", err)
	}
	if _, err := NewMAPDSolver("CBS"); !errors.Is(err, ErrUnknownSolver) {
		t.Errorf("CBS: err = %v, want ErrUnknownSolver", err)
	}

	if got := strings.Join(MAPFSolverNames(), ","); got != "HCA,PIBT,PIBT_PLUS" {
		t.Errorf("MAPFSolverNames() = %s", got)
	}
	if got := strings.Join(MAPDSolverNames(), ","); got != "PIBT,TP" {
		t.Errorf("MAPDSolverNames() = %s", got)
	}
}

func TestSolversRejectInvalidInstance(t *testing.T) {
	g := createGrid(2)
	inst := core.NewMAPFInstance(g, core.Config{0, 0}, core.Config{1, 2}, nil)
	for _, name := range MAPFSolverNames() {
		s, _ := NewMAPFSolver(name)
		if _, err := s.Solve(inst); !errors.Is(err, core.ErrDuplicateStart) {
			t.Errorf("%s: err = %v, want ErrDuplicateStart", name, err)
		}
	}
}

func TestAllMAPFSolversReturnValidPlan(t *testing.T) {
	g := createGrid(5)
	starts := core.Config{node(t, g, 0, 0), node(t, g, 4, 0), node(t, g, 0, 4)}
	goals := core.Config{node(t, g, 4, 4), node(t, g, 0, 4), node(t, g, 4, 0)}

	for _, name := range MAPFSolverNames() {
		t.Run(name, func(t *testing.T) {
			obs := &stepCounter{}
			s, _ := NewMAPFSolver(name, WithObserver(obs))
			inst := core.NewMAPFInstance(g, starts, goals, core.NewRand(0))
			res, err := s.Solve(inst)
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if !res.Solved {
				t.Fatalf("not solved")
			}
			if err := res.Plan.Validate(inst); err != nil {
				t.Errorf("Validate: %v", err)
			}
			if res.Solver != s.Name() {
				t.Errorf("Result.Solver = %q, want %q", res.Solver, s.Name())
			}
			if res.LBMakespan != 8 {
				t.Errorf("LBMakespan = %d, want 8", res.LBMakespan)
			}
			if res.Plan.Makespan() < res.LBMakespan {
				t.Errorf("makespan %d below lower bound %d", res.Plan.Makespan(), res.LBMakespan)
			}
			if res.Plan.SOC() < res.LBSOC {
				t.Errorf("soc %d below lower bound %d", res.Plan.SOC(), res.LBSOC)
			}
			if len(obs.finished) != 1 || obs.finished[0] != res {
				t.Errorf("OnFinish called %d times", len(obs.finished))
			}
		})
	}
}
