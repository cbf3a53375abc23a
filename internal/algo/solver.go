// Package algo implements MAPF and MAPD planners.
package algo

import (
	"errors"
	"log/slog"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

var (
	// ErrNotWellFormed is returned by TP when no safe endpoint or path exists.
	ErrNotWellFormed = errors.New("instance is not well-formed")
	// ErrSearchFailed marks a space-time search that found no path.
	ErrSearchFailed = errors.New("search failed")
	// ErrUnknownSolver is returned by the registry for unknown names.
	ErrUnknownSolver = errors.New("unknown solver")
)

// MAPFSolver plans until every agent reaches its goal.
type MAPFSolver interface {
	Name() string
	// Solve returns an unsolved result, not an error, when limits run out.
	Solve(inst *core.MAPFInstance) (*Result, error)
}

// MAPDSolver plans until every task is delivered.
type MAPDSolver interface {
	Name() string
	Solve(inst *core.MAPDInstance) (*Result, error)
}

// Observer receives progress from running planners.
type Observer interface {
	OnStep(solver string, timestep int)
	OnSearch(solver string, expanded int, found bool)
	OnFinish(res *Result)
}

type nopObserver struct{}

func (nopObserver) OnStep(string, int)         {}
func (nopObserver) OnSearch(string, int, bool) {}
func (nopObserver) OnFinish(*Result)           {}

// Result is the outcome of one planning run.
type Result struct {
	Solver            string
	Solved            bool
	Plan              *core.Plan
	CompTime          time.Duration
	PreprocessingTime time.Duration
	// ComplementTime is the time PIBT+ spent in its fallback planner.
	ComplementTime time.Duration

	// MAPF lower bounds from the distance table.
	LBSOC      int
	LBMakespan int

	// MAPD history aligned with Plan: per timestep, each agent's target node
	// and assigned task.
	Targets []core.Config
	Tasks   [][]core.TaskID
}

// Option configures a planner.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	observer        Observer
	disableDistInit bool
	useDistTable    bool
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		observer: nopObserver{},
	}
}

// WithLogger sets the logger for per-step debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver attaches a progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithoutDistInit drops the start-to-goal distance from PIBT priorities.
func WithoutDistInit() Option {
	return func(o *options) { o.disableDistInit = true }
}

// WithDistanceTable makes MAPD planners precompute all-pairs distances
// instead of querying the graph.
func WithDistanceTable(enabled bool) Option {
	return func(o *options) { o.useDistTable = enabled }
}

// planner holds what every solver shares: naming, limits and timing.
type planner struct {
	name string
	opts options
	log  *slog.Logger

	start       time.Time
	maxTimestep int
	maxCompTime time.Duration
}

func newPlanner(name string, opts []Option) planner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return planner{
		name: name,
		opts: o,
		log:  o.logger.With("solver", name),
	}
}

func (p *planner) Name() string { return p.name }

func (p *planner) begin(inst *core.Problem) {
	p.start = time.Now()
	p.maxTimestep = inst.MaxTimestep
	p.maxCompTime = inst.MaxCompTime
}

func (p *planner) elapsed() time.Duration {
	return time.Since(p.start)
}

func (p *planner) remaining() time.Duration {
	return max(0, p.maxCompTime-p.elapsed())
}

func (p *planner) overCompTime() bool {
	return p.elapsed() >= p.maxCompTime
}

func (p *planner) finish(res *Result) *Result {
	res.Solver = p.name
	res.CompTime = p.elapsed()
	p.log.Debug("planning finished",
		"solved", res.Solved,
		"makespan", res.Plan.Makespan(),
		"comp_time", res.CompTime)
	p.opts.observer.OnFinish(res)
	return res
}
