// Package state holds the replay state of a result log: the map, the logged
// configurations, conflicts found in them and the playback clock.
package state

import (
	"errors"
	"fmt"
	"math"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/report"
)

// ErrNoSolution is returned for logs written with --log-short.
var ErrNoSolution = errors.New("result log has no solution")

// Point is a position in cell units. Integer values are cell origins.
type Point struct {
	X, Y float64
}

func pointOf(p core.Pos) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// State holds all replay state.
type State struct {
	Log       *report.Log
	Map       *core.Workspace
	Playback  *PlaybackState
	Conflicts []*algo.Conflict

	Selected  int // agent index, -1 for none
	ShowPaths bool
	ShowGoals bool
}

// Load reads a result log and its map. An empty mapPath resolves the log's
// map_file next to the log.
func Load(logPath, mapPath string) (*State, error) {
	l, err := report.ReadFile(logPath)
	if err != nil {
		return nil, err
	}
	if mapPath == "" {
		mapPath = l.MapPath(logPath)
	}
	w, err := core.LoadMap(mapPath)
	if err != nil {
		return nil, err
	}
	return NewState(l, w)
}

// NewState prepares a log for replay on w.
func NewState(l *report.Log, w *core.Workspace) (*State, error) {
	if len(l.Solution) == 0 {
		return nil, ErrNoSolution
	}
	plan, err := l.Plan(w)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", l.Solver, err)
	}
	return &State{
		Log:       l,
		Map:       w,
		Playback:  NewPlaybackState(float64(len(l.Solution) - 1)),
		Conflicts: algo.FindAllConflicts(plan),
		Selected:  -1,
		ShowPaths: true,
		ShowGoals: true,
	}, nil
}

// NumAgents returns the number of agents in the log.
func (s *State) NumAgents() int { return len(s.Log.Solution[0]) }

// LastStep returns the final timestep.
func (s *State) LastStep() int { return len(s.Log.Solution) - 1 }

// Step returns the timestep the playhead is in.
func (s *State) Step() int {
	t := int(math.Floor(s.Playback.CurrentTime))
	return min(max(t, 0), s.LastStep())
}

// Position interpolates an agent's position at time t.
func (s *State) Position(agent int, t float64) Point {
	last := s.LastStep()
	if t <= 0 {
		return pointOf(s.Log.Solution[0][agent])
	}
	if t >= float64(last) {
		return pointOf(s.Log.Solution[last][agent])
	}
	i := int(math.Floor(t))
	a, b := pointOf(s.Log.Solution[i][agent]), pointOf(s.Log.Solution[i+1][agent])
	alpha := t - float64(i)
	return Point{X: a.X + alpha*(b.X-a.X), Y: a.Y + alpha*(b.Y-a.Y)}
}

// CurrentPositions returns every agent's position at the playhead.
func (s *State) CurrentPositions() []Point {
	ps := make([]Point, s.NumAgents())
	for i := range ps {
		ps[i] = s.Position(i, s.Playback.CurrentTime)
	}
	return ps
}

// Trail returns the cells an agent visited up to the playhead, ending at its
// interpolated position.
func (s *State) Trail(agent int) []Point {
	step := s.Step()
	trail := make([]Point, 0, step+2)
	for t := 0; t <= step; t++ {
		trail = append(trail, pointOf(s.Log.Solution[t][agent]))
	}
	return append(trail, s.Position(agent, s.Playback.CurrentTime))
}

// Future returns the rest of an agent's path from its interpolated position.
func (s *State) Future(agent int) []Point {
	step := s.Step()
	future := []Point{s.Position(agent, s.Playback.CurrentTime)}
	for t := step + 1; t <= s.LastStep(); t++ {
		future = append(future, pointOf(s.Log.Solution[t][agent]))
	}
	return future
}

// Goal returns where an agent is heading at the playhead: its goal in MAPF
// logs, its current target in MAPD logs.
func (s *State) Goal(agent int) (core.Pos, bool) {
	if s.Log.MAPD {
		step := s.Step()
		if step >= len(s.Log.Targets) || agent >= len(s.Log.Targets[step]) {
			return core.Pos{}, false
		}
		return s.Log.Targets[step][agent], true
	}
	if agent >= len(s.Log.Goals) {
		return core.Pos{}, false
	}
	return s.Log.Goals[agent], true
}

// Task returns the task an agent carries or heads to at the playhead.
func (s *State) Task(agent int) core.TaskID {
	step := s.Step()
	if !s.Log.MAPD || step >= len(s.Log.TaskIDs) || agent >= len(s.Log.TaskIDs[step]) {
		return core.NilTask
	}
	return s.Log.TaskIDs[step][agent]
}

// OpenTasks returns the logged tasks that appeared and were not yet
// finished at the playhead.
func (s *State) OpenTasks() []report.TaskRecord {
	step := s.Step()
	var open []report.TaskRecord
	for _, task := range s.Log.Tasks {
		if task.Appear <= step && step < task.Finished {
			open = append(open, task)
		}
	}
	return open
}

// ConflictsAt returns conflicts observed at timestep t.
func (s *State) ConflictsAt(t int) []*algo.Conflict {
	var out []*algo.Conflict
	for _, c := range s.Conflicts {
		if c.Time == t {
			out = append(out, c)
		}
	}
	return out
}

// Select toggles the selection of an agent; -1 clears it.
func (s *State) Select(agent int) {
	if agent == s.Selected {
		s.Selected = -1
		return
	}
	s.Selected = agent
}
