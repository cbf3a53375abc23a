package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Scenario is a parsed instance file. Lines are key=value pairs, "#" starts a
// comment, "x,y,x,y" lines are MAPF start/goal pairs and "x,y" lines are MAPD
// starts.
type Scenario struct {
	Path          string
	MapFile       string
	Agents        int
	Seed          uint64
	RandomProblem bool
	WellFormed    bool
	MaxTimestep   int
	MaxCompTime   time.Duration
	TaskNum       int
	TaskFrequency float64
	// SpecifyPickupDelivery applies the map's .pd marks when true.
	SpecifyPickupDelivery bool

	Pairs  [][2]Pos // MAPF start, goal
	Starts []Pos    // MAPD start
}

// LoadScenario reads an instance file from disk.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	defer f.Close()
	sc, err := ParseScenario(f)
	if err != nil {
		return nil, fmt.Errorf("parse instance %s: %w", path, err)
	}
	sc.Path = path
	return sc, nil
}

// ParseScenario reads the instance file format. Unset limits take defaults.
func ParseScenario(r io.Reader) (*Scenario, error) {
	sc := &Scenario{
		Seed:                  DefaultSeed,
		SpecifyPickupDelivery: true,
	}
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimRight(s.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, val, ok := strings.Cut(line, "="); ok {
			if err := sc.set(key, val); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		nums, err := parseInts(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", lineNo, ErrInvalidInstance, err)
		}
		switch len(nums) {
		case 4:
			sc.Pairs = append(sc.Pairs, [2]Pos{{X: nums[0], Y: nums[1]}, {X: nums[2], Y: nums[3]}})
		case 2:
			sc.Starts = append(sc.Starts, Pos{X: nums[0], Y: nums[1]})
		default:
			return nil, fmt.Errorf("line %d: %w: unexpected %q", lineNo, ErrInvalidInstance, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if sc.MapFile == "" {
		return nil, fmt.Errorf("%w: map_file is missing", ErrInvalidInstance)
	}
	if sc.Agents <= 0 {
		return nil, fmt.Errorf("%w: invalid number of agents", ErrInvalidInstance)
	}
	if sc.MaxTimestep == 0 {
		sc.MaxTimestep = DefaultMaxTimestep
	}
	if sc.MaxCompTime == 0 {
		sc.MaxCompTime = DefaultMaxCompTime
	}
	if sc.TaskNum == 0 {
		sc.TaskNum = DefaultTaskNum
	}
	if sc.TaskFrequency == 0 {
		sc.TaskFrequency = DefaultTaskFrequency
	}
	return sc, nil
}

func (sc *Scenario) set(key, val string) error {
	key, val = strings.TrimSpace(key), strings.TrimSpace(val)
	var err error
	switch key {
	case "map_file":
		sc.MapFile = val
	case "agents":
		sc.Agents, err = strconv.Atoi(val)
	case "seed":
		sc.Seed, err = strconv.ParseUint(val, 10, 64)
	case "random_problem":
		sc.RandomProblem, err = parseFlag(val)
	case "well_formed":
		sc.WellFormed, err = parseFlag(val)
	case "max_timestep":
		sc.MaxTimestep, err = strconv.Atoi(val)
	case "max_comp_time":
		var ms int
		ms, err = strconv.Atoi(val)
		sc.MaxCompTime = time.Duration(ms) * time.Millisecond
	case "task_num":
		sc.TaskNum, err = strconv.Atoi(val)
	case "task_frequency":
		sc.TaskFrequency, err = strconv.ParseFloat(val, 64)
	case "specify_pikup_deliv_locs", "specify_pickup_deliv_locs":
		sc.SpecifyPickupDelivery, err = parseFlag(val)
	default:
		// unknown keys are ignored
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInstance, key, err)
	}
	return nil
}

func parseFlag(val string) (bool, error) {
	n, err := strconv.Atoi(val)
	return n != 0, err
}

func parseInts(line string) ([]int, error) {
	parts := strings.Split(line, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// MapPath resolves the map file against the instance directory first and
// falls back to the path as written.
func (sc *Scenario) MapPath() string {
	if sc.Path != "" && !filepath.IsAbs(sc.MapFile) {
		p := filepath.Join(filepath.Dir(sc.Path), sc.MapFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return sc.MapFile
}

// LoadWorkspace loads the referenced map.
func (sc *Scenario) LoadWorkspace() (*Workspace, error) {
	return LoadMap(sc.MapPath())
}

// RandomMAPF reports whether MAPF starts and goals will be generated.
func (sc *Scenario) RandomMAPF() bool {
	return sc.RandomProblem || len(sc.Pairs) < sc.Agents
}

// RandomMAPD reports whether MAPD starts will be generated.
func (sc *Scenario) RandomMAPD() bool {
	return len(sc.Starts) < sc.Agents
}

// MAPF builds the MAPF instance, generating starts and goals when the file
// does not list enough of them.
func (sc *Scenario) MAPF(w *Workspace) (*MAPFInstance, error) {
	r := NewRand(sc.Seed)
	var starts, goals Config
	var err error
	switch {
	case !sc.RandomMAPF():
		for i, pair := range sc.Pairs[:sc.Agents] {
			s, ok := w.NodeAt(pair[0])
			if !ok {
				return nil, fmt.Errorf("%w: start %s of agent %d", ErrNodeNotFound, pair[0], i)
			}
			g, ok := w.NodeAt(pair[1])
			if !ok {
				return nil, fmt.Errorf("%w: goal %s of agent %d", ErrNodeNotFound, pair[1], i)
			}
			starts = append(starts, s)
			goals = append(goals, g)
		}
	case sc.WellFormed:
		starts, goals, err = WellFormedStartsGoals(w, sc.Agents, r)
	default:
		starts, goals, err = RandomStartsGoals(w, sc.Agents, r)
	}
	if err != nil {
		return nil, err
	}

	inst := NewMAPFInstance(w, starts, goals, r)
	inst.Name = sc.Path
	inst.MaxTimestep = sc.MaxTimestep
	inst.MaxCompTime = sc.MaxCompTime
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// MAPD builds the MAPD instance and issues the tasks of timestep 0.
func (sc *Scenario) MAPD(w *Workspace) (*MAPDInstance, error) {
	if !sc.SpecifyPickupDelivery {
		w.ClearMarks()
	}
	r := NewRand(sc.Seed)
	var starts Config
	if sc.RandomMAPD() {
		var err error
		starts, err = RandomMAPDStarts(w, sc.Agents, r)
		if err != nil {
			return nil, err
		}
	} else {
		for i, p := range sc.Starts[:sc.Agents] {
			s, ok := w.NodeAt(p)
			if !ok {
				return nil, fmt.Errorf("%w: start %s of agent %d", ErrNodeNotFound, p, i)
			}
			starts = append(starts, s)
		}
	}

	inst, err := NewMAPDInstance(w, starts, sc.TaskNum, sc.TaskFrequency, r)
	if err != nil {
		return nil, err
	}
	inst.Name = sc.Path
	inst.MaxTimestep = sc.MaxTimestep
	inst.MaxCompTime = sc.MaxCompTime
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// ErrNoMapFile is returned by WriteScenario for workspaces without a name.
var ErrNoMapFile = errors.New("workspace has no map file name")

// WriteScenario writes inst as an instance file with explicit starts and goals.
func WriteScenario(out io.Writer, inst *MAPFInstance, mapFile string) error {
	if mapFile == "" {
		return ErrNoMapFile
	}
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "map_file=%s\n", mapFile)
	fmt.Fprintf(bw, "agents=%d\n", inst.NumAgents())
	fmt.Fprintf(bw, "seed=0\n")
	fmt.Fprintf(bw, "random_problem=0\n")
	fmt.Fprintf(bw, "max_timestep=%d\n", inst.MaxTimestep)
	fmt.Fprintf(bw, "max_comp_time=%d\n", inst.MaxCompTime.Milliseconds())
	for i := range inst.Starts {
		s, g := inst.G.Pos(inst.Starts[i]), inst.G.Pos(inst.Goals[i])
		fmt.Fprintf(bw, "%d,%d,%d,%d\n", s.X, s.Y, g.X, g.Y)
	}
	return bw.Flush()
}
