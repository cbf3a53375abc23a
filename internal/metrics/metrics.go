// Package metrics exports planner progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
)

const namespace = "pibt"

// Recorder collects planner metrics on its own registry. It implements
// algo.Observer.
type Recorder struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	CompTime       *prometheus.HistogramVec
	Preprocessing  *prometheus.HistogramVec
	StepsTotal     *prometheus.CounterVec
	Timestep       *prometheus.GaugeVec
	SearchesTotal  *prometheus.CounterVec
	SearchExpanded *prometheus.HistogramVec
	Makespan       *prometheus.GaugeVec
	SOC            *prometheus.GaugeVec
	TasksClosed    *prometheus.CounterVec
	ServiceTime    *prometheus.GaugeVec
}

var _ algo.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Planning runs by solver and outcome",
		}, []string{"solver", "solved"}),
		CompTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comp_time_seconds",
			Help:      "Planning time per run, excluding preprocessing",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		}, []string{"solver"}),
		Preprocessing: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "preprocessing_seconds",
			Help:      "Distance table construction time per run",
			Buckets:   []float64{.001, .01, .1, 1, 10, 60},
		}, []string{"solver"}),
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Simulated timesteps",
		}, []string{"solver"}),
		Timestep: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timestep",
			Help:      "Current timestep of the running planner",
		}, []string{"solver"}),
		SearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Space-time A* searches by outcome",
		}, []string{"solver", "found"}),
		SearchExpanded: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_expanded_nodes",
			Help:      "Nodes expanded per space-time A* search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"solver"}),
		Makespan: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "makespan",
			Help:      "Makespan of the last plan",
		}, []string{"solver"}),
		SOC: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sum_of_costs",
			Help:      "Sum of costs of the last MAPF plan",
		}, []string{"solver"}),
		TasksClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_closed_total",
			Help:      "Delivered MAPD tasks",
		}, []string{"solver"}),
		ServiceTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_time",
			Help:      "Total service time of the last MAPD run",
		}, []string{"solver"}),
	}
}

// Registry returns the registry holding every collector.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) OnStep(solver string, timestep int) {
	r.StepsTotal.WithLabelValues(solver).Inc()
	r.Timestep.WithLabelValues(solver).Set(float64(timestep))
}

func (r *Recorder) OnSearch(solver string, expanded int, found bool) {
	r.SearchesTotal.WithLabelValues(solver, strconv.FormatBool(found)).Inc()
	r.SearchExpanded.WithLabelValues(solver).Observe(float64(expanded))
}

func (r *Recorder) OnFinish(res *algo.Result) {
	r.RunsTotal.WithLabelValues(res.Solver, strconv.FormatBool(res.Solved)).Inc()
	r.CompTime.WithLabelValues(res.Solver).Observe(res.CompTime.Seconds())
	r.Preprocessing.WithLabelValues(res.Solver).Observe(res.PreprocessingTime.Seconds())
	if res.Plan != nil {
		r.Makespan.WithLabelValues(res.Solver).Set(float64(res.Plan.Makespan()))
		if res.Targets == nil {
			r.SOC.WithLabelValues(res.Solver).Set(float64(res.Plan.SOC()))
		}
	}
}

// RecordTasks records the outcome of a MAPD run.
func (r *Recorder) RecordTasks(solver string, closed, serviceTime int) {
	r.TasksClosed.WithLabelValues(solver).Add(float64(closed))
	r.ServiceTime.WithLabelValues(solver).Set(float64(serviceTime))
}

// Server exposes a Recorder over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts an HTTP server on addr with the registry at path and a
// /health probe. Bind errors are returned before Serve returns.
func (r *Recorder) Serve(addr, path string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		ln: ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return s, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
