// Package session owns the published graph and its derived results and
// runs the build, layout, analysis and clustering stages that refresh them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ritzau/relgraph/pkg/builder"
	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/lens"
	"github.com/ritzau/relgraph/pkg/logging"
	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/network"
	"github.com/ritzau/relgraph/pkg/paths"
	"github.com/ritzau/relgraph/pkg/pubsub"
	"github.com/ritzau/relgraph/pkg/source"
	"github.com/ritzau/relgraph/pkg/telemetry"
)

// ErrNotReady is returned by reads that need a graph before the first
// successful build.
var ErrNotReady = errors.New("no graph built yet")

// Options configures the stages of a session.
type Options struct {
	Strategy layout.Strategy
	Layout   layout.Options
	Analyzer network.Analyzer
	Detector clusters.Detector
	Finder   paths.Finder

	// Publisher receives status, analysis and graph events. May be nil.
	Publisher pubsub.Publisher
	// History stores a report after every run. May be nil.
	History *history.Store
}

// DefaultOptions returns force-directed layout with default settings and
// connected component clustering.
func DefaultOptions() Options {
	return Options{
		Strategy: layout.ForceDirected,
		Layout:   layout.DefaultOptions(),
		Detector: clusters.Detector{Method: clusters.Components},
	}
}

// RunOptions selects the stages of a Run.
type RunOptions struct {
	SkipBuild    bool
	SkipLayout   bool
	SkipAnalysis bool
	SkipClusters bool
	Reason       string // e.g. "initial analysis", "source changed"
}

const totalSteps = 4

// Session holds the current graph and everything derived from it. Every
// stage works on a private copy and swaps it in when complete, so readers
// only ever see finished snapshots. Published graphs must not be mutated.
type Session struct {
	src    source.Source
	opts   Options
	engine *layout.Engine
	logger *slog.Logger

	runMu sync.Mutex // serialises writers

	mu        sync.RWMutex
	graph     *model.Graph
	warnings  []builder.Warning
	layoutRes *layout.Result
	metrics   *network.Metrics
	partition *clusters.Partition
	view      *lens.GraphSnapshot // last published default view
}

// New creates a session reading from src. Nothing is built until Run or
// Rebuild is called.
func New(src source.Source, opts Options) (*Session, error) {
	if opts.Strategy == "" {
		opts.Strategy = layout.ForceDirected
	}
	if _, err := layout.ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	engine, err := layout.NewEngine(opts.Layout)
	if err != nil {
		return nil, err
	}
	return &Session{
		src:    src,
		opts:   opts,
		engine: engine,
		logger: logging.New("session"),
	}, nil
}

// Reconfigure replaces the stage options. It waits for a running stage to
// finish. Publisher and History are kept when opts leaves them nil.
func (s *Session) Reconfigure(opts Options) error {
	if opts.Strategy == "" {
		opts.Strategy = layout.ForceDirected
	}
	if _, err := layout.ParseStrategy(string(opts.Strategy)); err != nil {
		return err
	}
	engine, err := layout.NewEngine(opts.Layout)
	if err != nil {
		return err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if opts.Publisher == nil {
		opts.Publisher = s.opts.Publisher
	}
	if opts.History == nil {
		opts.History = s.opts.History
	}
	s.mu.Lock()
	s.opts = opts
	s.engine = engine
	s.mu.Unlock()
	return nil
}

// options returns the stage options for callers not holding runMu.
func (s *Session) options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Source returns the session's entity source.
func (s *Session) Source() source.Source {
	return s.src
}

// Run executes the selected stages in order and returns the resulting
// report. A failed stage aborts the run and leaves the previous snapshot
// in place.
func (s *Session) Run(ctx context.Context, opts RunOptions) (*history.Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.logger.InfoContext(ctx, "starting run", "reason", opts.Reason)
	start := time.Now()

	if !opts.SkipBuild {
		s.status("building", "Building graph from "+s.src.Name(), 1)
		if err := s.rebuild(ctx); err != nil {
			return nil, s.fail(ctx, "build", err)
		}
	} else if s.current() == nil {
		return nil, ErrNotReady
	}

	if !opts.SkipLayout {
		s.status("layout", fmt.Sprintf("Running %s layout", s.opts.Strategy), 2)
		if _, err := s.relayout(ctx, s.opts.Strategy); err != nil {
			return nil, s.fail(ctx, "layout", err)
		}
	}

	if !opts.SkipAnalysis {
		s.status("analyzing", "Computing network metrics", 3)
		if _, err := s.analyze(ctx); err != nil {
			return nil, s.fail(ctx, "analysis", err)
		}
	}

	if !opts.SkipClusters {
		s.status("clustering", "Detecting clusters", 4)
		if _, err := s.detectClusters(ctx); err != nil {
			return nil, s.fail(ctx, "clusters", err)
		}
		s.publishView()
	}

	report := s.Report()
	if s.opts.History != nil {
		if err := s.opts.History.Save(ctx, report); err != nil {
			s.logger.WarnContext(ctx, "failed to save report", "error", err)
		}
	}
	s.publishSummary()
	s.status("ready", "Analysis complete", totalSteps)

	s.logger.InfoContext(ctx, "run complete",
		"reason", opts.Reason,
		"revision", report.Revision,
		"durationMs", time.Since(start).Milliseconds())
	return report, nil
}

// Rebuild reloads the source and swaps in the new graph. Positions of
// entities that survive the rebuild are kept.
func (s *Session) Rebuild(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.rebuild(ctx)
}

func (s *Session) rebuild(ctx context.Context) error {
	defer observe("build", time.Now())

	res, err := builder.Build(ctx, s.src)
	if err != nil {
		telemetry.GraphBuilds.WithLabelValues("error").Inc()
		return err
	}
	telemetry.GraphBuilds.WithLabelValues("ok").Inc()
	for _, w := range res.Warnings {
		telemetry.BuildWarnings.WithLabelValues(w.Kind).Inc()
	}

	g := res.Graph
	if old := s.current(); old != nil {
		for _, n := range g.Nodes() {
			if prev, ok := old.Node(n.ID); ok && prev.Placed {
				n.Position = prev.Position
				n.Placed = true
			}
		}
	}
	g.Reindex()

	s.mu.Lock()
	s.graph = g
	s.warnings = res.Warnings
	s.layoutRes = nil
	s.metrics = nil
	s.partition = nil
	s.mu.Unlock()

	telemetry.GraphSize.WithLabelValues("nodes").Set(float64(g.NodeCount()))
	telemetry.GraphSize.WithLabelValues("edges").Set(float64(g.EdgeCount()))
	s.publishView()
	return nil
}

// Relayout runs strategy over a copy of the current graph and swaps it in.
// A cancelled layout is discarded.
func (s *Session) Relayout(ctx context.Context, strategy layout.Strategy) (*layout.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.relayout(ctx, strategy)
}

func (s *Session) relayout(ctx context.Context, strategy layout.Strategy) (*layout.Result, error) {
	current := s.current()
	if current == nil {
		return nil, ErrNotReady
	}
	defer observe("layout", time.Now())

	g := current.Clone()
	res, err := s.engine.Apply(ctx, g, strategy)
	if err != nil {
		return nil, err
	}
	g.Reindex()
	telemetry.LayoutRuns.WithLabelValues(string(strategy)).Inc()

	s.mu.Lock()
	s.graph = g
	s.layoutRes = res
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "layout applied",
		"strategy", string(strategy),
		"passes", res.Passes,
		"converged", res.Converged)
	s.publishView()
	return res, nil
}

// Analyze recomputes the network metrics of the current graph.
func (s *Session) Analyze(ctx context.Context) (*network.Metrics, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	m, err := s.analyze(ctx)
	if err == nil {
		s.publishSummary()
	}
	return m, err
}

func (s *Session) analyze(ctx context.Context) (*network.Metrics, error) {
	g := s.current()
	if g == nil {
		return nil, ErrNotReady
	}
	defer observe("analysis", time.Now())

	m, err := s.opts.Analyzer.Analyze(ctx, g)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
	return m, nil
}

// DetectClusters repartitions the current graph.
func (s *Session) DetectClusters(ctx context.Context) (*clusters.Partition, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	p, err := s.detectClusters(ctx)
	if err == nil {
		s.publishSummary()
		s.publishView()
	}
	return p, err
}

func (s *Session) detectClusters(ctx context.Context) (*clusters.Partition, error) {
	g := s.current()
	if g == nil {
		return nil, ErrNotReady
	}
	defer observe("clusters", time.Now())

	p, err := s.opts.Detector.Detect(ctx, g)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.partition = p
	s.mu.Unlock()
	return p, nil
}

func (s *Session) current() *model.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Session) fail(ctx context.Context, stage string, err error) error {
	state, level := "failed", s.logger.ErrorContext
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		state, level = "cancelled", s.logger.WarnContext
	}
	level(ctx, "stage failed", "stage", stage, "error", err)
	s.status(state, fmt.Sprintf("%s: %v", stage, err), 0)
	return fmt.Errorf("%s stage: %w", stage, err)
}

func observe(stage string, start time.Time) {
	telemetry.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
