package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/report"
)

func pos(x, y int) core.Pos { return core.Pos{X: x, Y: y} }

// testLog has two agents on a 3x2 grid meeting at (1,1) at t=2.
func testLog() *report.Log {
	return &report.Log{
		Solver:  "PIBT",
		MapFile: "grid.map",
		Agents:  2,
		Starts:  []core.Pos{pos(0, 0), pos(2, 0)},
		Goals:   []core.Pos{pos(1, 1), pos(2, 1)},
		Solution: [][]core.Pos{
			{pos(0, 0), pos(2, 0)},
			{pos(1, 0), pos(2, 1)},
			{pos(1, 1), pos(1, 1)},
		},
	}
}

func newTestState(t *testing.T, l *report.Log) *State {
	t.Helper()
	s, err := NewState(l, core.NewGrid(3, 2))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewState(t *testing.T) {
	s := newTestState(t, testLog())
	if s.NumAgents() != 2 || s.LastStep() != 2 {
		t.Fatalf("agents=%d last=%d, want 2 and 2", s.NumAgents(), s.LastStep())
	}
	if s.Playback.MaxTime != 2 {
		t.Errorf("MaxTime = %v, want 2", s.Playback.MaxTime)
	}
	if s.Selected != -1 {
		t.Errorf("Selected = %d, want -1", s.Selected)
	}
	if len(s.Conflicts) != 1 {
		t.Fatalf("conflicts = %v, want one", s.Conflicts)
	}
	if c := s.Conflicts[0]; c.Time != 2 || c.IsEdge {
		t.Errorf("conflict = %v, want vertex conflict at t=2", c)
	}
	if got := s.ConflictsAt(2); len(got) != 1 {
		t.Errorf("ConflictsAt(2) = %v", got)
	}
	if got := s.ConflictsAt(1); len(got) != 0 {
		t.Errorf("ConflictsAt(1) = %v, want none", got)
	}
}

func TestNewState_Errors(t *testing.T) {
	l := testLog()
	l.Solution = nil
	if _, err := NewState(l, core.NewGrid(3, 2)); !errors.Is(err, ErrNoSolution) {
		t.Errorf("err = %v, want ErrNoSolution", err)
	}

	l = testLog()
	l.Solution[1][0] = pos(5, 5)
	if _, err := NewState(l, core.NewGrid(3, 2)); !errors.Is(err, core.ErrNodeNotFound) {
		t.Errorf("err = %v, want ErrNodeNotFound", err)
	}
}

func TestState_Position(t *testing.T) {
	s := newTestState(t, testLog())
	tests := []struct {
		t    float64
		want Point
	}{
		{-1, Point{0, 0}},
		{0, Point{0, 0}},
		{0.5, Point{0.5, 0}},
		{1, Point{1, 0}},
		{1.25, Point{1, 0.25}},
		{2, Point{1, 1}},
		{9, Point{1, 1}},
	}
	for _, tt := range tests {
		if got := s.Position(0, tt.t); got != tt.want {
			t.Errorf("Position(0, %v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestState_TrailAndFuture(t *testing.T) {
	s := newTestState(t, testLog())
	s.Playback.SetTime(1.5)

	if s.Step() != 1 {
		t.Fatalf("Step = %d, want 1", s.Step())
	}
	trail := s.Trail(0)
	want := []Point{{0, 0}, {1, 0}, {1, 0.5}}
	if len(trail) != len(want) {
		t.Fatalf("Trail = %v, want %v", trail, want)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Errorf("Trail[%d] = %v, want %v", i, trail[i], want[i])
		}
	}

	future := s.Future(1)
	wantFuture := []Point{{1.5, 1}, {1, 1}}
	if len(future) != len(wantFuture) || future[0] != wantFuture[0] || future[1] != wantFuture[1] {
		t.Errorf("Future = %v, want %v", future, wantFuture)
	}
}

func TestState_GoalMAPF(t *testing.T) {
	s := newTestState(t, testLog())
	g, ok := s.Goal(1)
	if !ok || g != pos(2, 1) {
		t.Errorf("Goal(1) = %v %v, want (2,1)", g, ok)
	}
	if _, ok := s.Goal(5); ok {
		t.Error("Goal of unknown agent reported")
	}
	if s.Task(0) != core.NilTask {
		t.Errorf("Task in MAPF log = %d, want NilTask", s.Task(0))
	}
}

func TestState_MAPD(t *testing.T) {
	l := testLog()
	l.MAPD = true
	l.Goals = nil
	l.Targets = [][]core.Pos{
		{pos(1, 0), pos(2, 1)},
		{pos(1, 1), pos(2, 1)},
		{pos(1, 1), pos(1, 1)},
	}
	l.TaskIDs = [][]core.TaskID{{0, core.NilTask}, {0, core.NilTask}, {core.NilTask, core.NilTask}}
	l.Tasks = []report.TaskRecord{
		{ID: 0, Pickup: pos(1, 0), Delivery: pos(1, 1), Appear: 0, Finished: 2},
		{ID: 1, Pickup: pos(0, 1), Delivery: pos(2, 1), Appear: 1, Finished: 5},
	}
	s := newTestState(t, l)

	s.Playback.SetTime(1)
	if g, ok := s.Goal(0); !ok || g != pos(1, 1) {
		t.Errorf("Goal(0) at t=1 = %v %v, want (1,1)", g, ok)
	}
	if s.Task(0) != 0 {
		t.Errorf("Task(0) = %d, want 0", s.Task(0))
	}
	if open := s.OpenTasks(); len(open) != 2 {
		t.Errorf("OpenTasks at t=1 = %v, want both", open)
	}

	s.Playback.SetTime(2)
	open := s.OpenTasks()
	if len(open) != 1 || open[0].ID != 1 {
		t.Errorf("OpenTasks at t=2 = %v, want task 1", open)
	}
	if s.Task(0) != core.NilTask {
		t.Errorf("Task(0) at t=2 = %d, want NilTask", s.Task(0))
	}
}

func TestState_Select(t *testing.T) {
	s := newTestState(t, testLog())
	s.Select(1)
	if s.Selected != 1 {
		t.Fatalf("Selected = %d, want 1", s.Selected)
	}
	s.Select(1)
	if s.Selected != -1 {
		t.Errorf("selecting twice should clear, got %d", s.Selected)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	mapData := "type octile\nheight 2\nwidth 3\nmap\n...\n...\n"
	if err := os.WriteFile(filepath.Join(dir, "grid.map"), []byte(mapData), 0o644); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(dir, "result.txt")
	if err := testLog().WriteFile(logPath, false); err != nil {
		t.Fatal(err)
	}

	s, err := Load(logPath, "")
	if err != nil {
		t.Fatal(err)
	}
	if s.NumAgents() != 2 || s.Map.Width != 3 {
		t.Errorf("agents=%d width=%d, want 2 and 3", s.NumAgents(), s.Map.Width)
	}

	if _, err := Load(logPath, filepath.Join(dir, "missing.map")); err == nil {
		t.Error("Load with a missing map succeeded")
	}
}

func TestPlayback(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewPlaybackState(10)
	p.now = func() time.Time { return clock }

	p.TogglePlay()
	if !p.Playing {
		t.Fatal("TogglePlay did not start playback")
	}
	clock = clock.Add(500 * time.Millisecond)
	p.Advance()
	if p.CurrentTime != 2 {
		t.Errorf("CurrentTime = %v after 0.5s at 4 steps/s, want 2", p.CurrentTime)
	}

	clock = clock.Add(10 * time.Second)
	p.Advance()
	if p.CurrentTime != 10 || p.Playing {
		t.Errorf("CurrentTime = %v playing=%v, want 10 and stopped", p.CurrentTime, p.Playing)
	}

	p.TogglePlay()
	if p.CurrentTime != 0 || !p.Playing {
		t.Errorf("playing from the end should restart, got %v playing=%v", p.CurrentTime, p.Playing)
	}
}

func TestPlayback_Steps(t *testing.T) {
	p := NewPlaybackState(3)
	p.SetTime(1.4)
	p.StepForward()
	if p.CurrentTime != 2 {
		t.Errorf("StepForward from 1.4 = %v, want 2", p.CurrentTime)
	}
	p.SetTime(1.4)
	p.StepBack()
	if p.CurrentTime != 1 {
		t.Errorf("StepBack from 1.4 = %v, want 1", p.CurrentTime)
	}
	p.StepBack()
	p.StepBack()
	if p.CurrentTime != 0 {
		t.Errorf("StepBack past 0 = %v, want 0", p.CurrentTime)
	}
	p.End()
	p.StepForward()
	if p.CurrentTime != 3 {
		t.Errorf("StepForward past end = %v, want 3", p.CurrentTime)
	}
	if p.Progress() != 1 {
		t.Errorf("Progress at end = %v, want 1", p.Progress())
	}
	p.Reset()
	if p.CurrentTime != 0 || p.Playing {
		t.Errorf("Reset left %v playing=%v", p.CurrentTime, p.Playing)
	}
}

func TestPlayback_Speed(t *testing.T) {
	p := NewPlaybackState(1)
	p.SetSpeed(0.01)
	if p.Speed != minSpeed {
		t.Errorf("Speed = %v, want %v", p.Speed, minSpeed)
	}
	p.SetSpeed(1000)
	if p.Speed != maxSpeed {
		t.Errorf("Speed = %v, want %v", p.Speed, maxSpeed)
	}
	if NewPlaybackState(0).Progress() != 0 {
		t.Error("Progress of an empty clock should be 0")
	}
}
