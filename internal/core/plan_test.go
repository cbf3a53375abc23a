package core

import (
	"errors"
	"testing"
)

// 2x2 grid ids:
//
//	0 1
//	2 3
func toyInstance(goals Config) *MAPFInstance {
	return NewMAPFInstance(NewGrid(2, 2), Config{0, 3}, goals, nil)
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		configs []Config
		goals   Config
		wantErr bool
	}{
		{"toy plan", []Config{{0, 3}, {1, 2}}, Config{1, 2}, false},
		{"goal mismatch", []Config{{0, 3}, {1, 2}}, Config{2, 1}, true},
		{"wrong start", []Config{{1, 3}, {1, 2}}, Config{1, 2}, true},
		{"vertex collision", []Config{{0, 3}, {1, 1}, {1, 2}}, Config{1, 2}, true},
		{"jump", []Config{{0, 3}, {3, 2}}, Config{3, 2}, true},
		{"swap", []Config{{0, 1}, {1, 0}}, Config{1, 0}, true},
		{"empty", nil, Config{1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := toyInstance(tt.goals)
			if len(tt.configs) > 0 {
				inst.Starts = tt.configs[0]
				if tt.name == "wrong start" {
					inst.Starts = Config{0, 3}
				}
			}
			plan := &Plan{}
			for _, c := range tt.configs {
				plan.Add(c)
			}
			err := plan.Validate(inst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error %v does not wrap ErrInvalidPlan", err)
			}
		})
	}
}

func TestPlanValidatePartial(t *testing.T) {
	tests := []struct {
		name    string
		configs []Config
		wantErr bool
	}{
		{"short of goals", []Config{{0, 3}, {1, 3}}, false},
		{"empty", nil, false},
		{"wrong start", []Config{{1, 3}, {0, 3}}, true},
		{"jump", []Config{{0, 3}, {3, 2}}, true},
		{"vertex collision", []Config{{0, 3}, {1, 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &Plan{}
			for _, c := range tt.configs {
				plan.Add(c)
			}
			err := plan.ValidatePartial(toyInstance(Config{1, 2}))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePartial() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error %v does not wrap ErrInvalidPlan", err)
			}
		})
	}
}

func TestPlanCosts(t *testing.T) {
	plan := PlanFromPaths([]Path{
		{0, 1, 1, 1},
		{3, 3, 2},
	})
	if got := plan.Makespan(); got != 3 {
		t.Errorf("Makespan = %d, want 3", got)
	}
	if got := plan.PathCost(0); got != 1 {
		t.Errorf("PathCost(0) = %d, want 1", got)
	}
	if got := plan.PathCost(1); got != 2 {
		t.Errorf("PathCost(1) = %d, want 2", got)
	}
	if got := plan.SOC(); got != 3 {
		t.Errorf("SOC = %d, want 3", got)
	}
	if got := plan.Path(1); !Config(got).Equal(Config{3, 3, 2, 2}) {
		t.Errorf("padded path = %v", got)
	}
}

func TestPlanAppend(t *testing.T) {
	a := &Plan{}
	a.Add(Config{0, 3})
	a.Add(Config{1, 3})

	b := &Plan{}
	b.Add(Config{1, 3})
	b.Add(Config{1, 2})

	if err := a.Append(b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.Len() != 3 || !a.Last().Equal(Config{1, 2}) {
		t.Errorf("appended plan has %d configs, last %v", a.Len(), a.Last())
	}

	c := &Plan{}
	c.Add(Config{0, 3})
	if err := a.Append(c); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("mismatched junction: err = %v", err)
	}

	empty := &Plan{}
	if err := empty.Append(b); err != nil || empty.Len() != 2 {
		t.Errorf("append onto empty plan: len %d, err %v", empty.Len(), err)
	}
}

func TestPlanAddCopies(t *testing.T) {
	c := Config{0, 3}
	plan := &Plan{}
	plan.Add(c)
	c[0] = 1
	if plan.Get(0)[0] != 0 {
		t.Errorf("Plan.Add kept a reference to the caller's config")
	}
	if plan.Get(5) != nil {
		t.Errorf("Get out of range should be nil")
	}
}
