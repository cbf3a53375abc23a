package core

import (
	"errors"
	"testing"
)

func TestMAPFValidate(t *testing.T) {
	g := NewGrid(2, 2)
	tests := []struct {
		name   string
		starts Config
		goals  Config
		want   error
	}{
		{"ok", Config{0, 3}, Config{1, 2}, nil},
		{"no agents", Config{}, Config{}, ErrInvalidInstance},
		{"duplicate start", Config{0, 0}, Config{1, 2}, ErrDuplicateStart},
		{"duplicate goal", Config{0, 3}, Config{1, 1}, ErrDuplicateGoal},
		{"missing node", Config{0, 9}, Config{1, 2}, ErrNodeNotFound},
		{"goal count", Config{0, 3}, Config{1}, ErrInvalidInstance},
		{"too many", Config{0, 1, 2, 3, 4}, Config{0, 1, 2, 3, 4}, ErrTooManyAgents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMAPFInstance(g, tt.starts, tt.goals, nil).Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRandomStartsGoals(t *testing.T) {
	g := NewGrid(5, 5)
	starts, goals, err := RandomStartsGoals(g, 10, NewRand(1))
	if err != nil {
		t.Fatal(err)
	}
	inst := NewMAPFInstance(g, starts, goals, nil)
	if err := inst.Validate(); err != nil {
		t.Fatalf("generated instance invalid: %v", err)
	}
	for i := range starts {
		if starts[i] == goals[i] {
			t.Errorf("agent %d starts on its goal", i)
		}
	}

	again, _, _ := RandomStartsGoals(g, 10, NewRand(1))
	if !starts.Equal(again) {
		t.Errorf("same seed gave different starts: %v vs %v", starts, again)
	}

	if _, _, err := RandomStartsGoals(g, 26, NewRand(1)); !errors.Is(err, ErrTooManyAgents) {
		t.Errorf("expected ErrTooManyAgents, got %v", err)
	}
}

func TestWellFormedStartsGoals(t *testing.T) {
	g := NewGrid(8, 8)
	starts, goals, err := WellFormedStartsGoals(g, 4, NewRand(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(starts) != 4 || len(goals) != 4 {
		t.Fatalf("got %d starts, %d goals", len(starts), len(goals))
	}
	if err := NewMAPFInstance(g, starts, goals, nil).Validate(); err != nil {
		t.Fatalf("generated instance invalid: %v", err)
	}
	for i := range starts {
		var others []NodeID
		for j := range starts {
			if j != i {
				others = append(others, starts[j], goals[j])
			}
		}
		if g.Path(starts[i], goals[i], others) == nil {
			t.Errorf("agent %d cannot reach goal around other endpoints", i)
		}
	}
}

func TestMAPDTaskGeneration(t *testing.T) {
	g := NewGrid(6, 6)
	inst, err := NewMAPDInstance(g, Config{0, 35}, 10, 1, NewRand(0))
	if err != nil {
		t.Fatal(err)
	}
	if inst.Timestep != 0 {
		t.Fatalf("Timestep = %d, want 0", inst.Timestep)
	}
	if got := len(inst.Open); got != 1 {
		t.Fatalf("open tasks at t=0: %d, want 1", got)
	}

	for step := 0; step < 30; step++ {
		inst.Update()
		if len(inst.Open) > inst.TaskNum {
			t.Fatalf("t=%d: %d open tasks exceeds task num", inst.Timestep, len(inst.Open))
		}
	}
	if got := len(inst.Open) + len(inst.Closed); got != 10 {
		t.Errorf("created %d tasks, want 10", got)
	}
	for i, task := range inst.Open {
		if task.ID != TaskID(i) {
			t.Errorf("task %d has id %d", i, task.ID)
		}
		if task.Pickup == task.Delivery {
			t.Errorf("task %d picks up at its delivery", task.ID)
		}
	}
}

func TestMAPDUpdateClosesDelivered(t *testing.T) {
	g := NewGrid(4, 4)
	inst, err := NewMAPDInstance(g, Config{0}, 3, 1, NewRand(2))
	if err != nil {
		t.Fatal(err)
	}
	task := inst.Open[0]
	task.Current = task.Delivery

	inst.Update()
	if len(inst.Closed) != 1 || inst.Closed[0] != task {
		t.Fatalf("delivered task not closed")
	}
	if task.Finished != 1 {
		t.Errorf("Finished = %d, want 1", task.Finished)
	}
	if task.Finished <= task.Appear {
		t.Errorf("Finished %d not after Appear %d", task.Finished, task.Appear)
	}
	if got := inst.ServiceTime(); got != 1 {
		t.Errorf("ServiceTime = %d, want 1", got)
	}
	if inst.Finished() {
		t.Errorf("instance finished with 1 of 3 tasks closed")
	}
}

func TestMAPDBernoulliFrequency(t *testing.T) {
	g := NewGrid(4, 4)
	inst, err := NewMAPDInstance(g, Config{0}, 1000, 0.5, NewRand(7))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 99; i++ {
		inst.Update()
	}
	// 100 draws at p=0.5
	if n := len(inst.Open); n < 25 || n > 75 {
		t.Errorf("%d tasks after 100 steps at frequency 0.5", n)
	}
}

func TestMAPDValidate(t *testing.T) {
	g := NewGrid(3, 3)
	tests := []struct {
		name    string
		starts  Config
		taskNum int
		freq    float64
		want    error
	}{
		{"duplicate start", Config{1, 1}, 5, 1, ErrDuplicateStart},
		{"no tasks", Config{1}, 0, 1, ErrInvalidInstance},
		{"zero frequency", Config{1}, 5, 0, ErrInvalidInstance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMAPDInstance(g, tt.starts, tt.taskNum, tt.freq, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRandomMAPDStartsPreferParking(t *testing.T) {
	g := NewGrid(4, 1)
	g.Mark(0, KindEndpoint)
	g.Mark(3, KindEndpoint)
	g.Mark(1, KindPickup)
	g.Mark(2, KindDelivery)

	starts, err := RandomMAPDStarts(g, 2, NewRand(0))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range starts {
		if v != 0 && v != 3 {
			t.Errorf("start %d is not a parking endpoint", v)
		}
	}
	if _, err := RandomMAPDStarts(g, 3, NewRand(0)); !errors.Is(err, ErrTooManyAgents) {
		t.Errorf("expected ErrTooManyAgents, got %v", err)
	}
}
