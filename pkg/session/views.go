package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ritzau/relgraph/pkg/builder"
	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/lens"
	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/network"
	"github.com/ritzau/relgraph/pkg/paths"
	"github.com/ritzau/relgraph/pkg/pubsub"
)

// Graph returns the current graph, or nil before the first build. The
// graph is shared and must be treated as read-only.
func (s *Session) Graph() *model.Graph {
	return s.current()
}

// Metrics returns the latest network metrics, or nil.
func (s *Session) Metrics() *network.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Partition returns the latest cluster partition, or nil.
func (s *Session) Partition() *clusters.Partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partition
}

// Layout returns the result of the latest layout run, or nil.
func (s *Session) Layout() *layout.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layoutRes
}

// Warnings returns the records skipped by the latest build.
func (s *Session) Warnings() []builder.Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnings
}

// Report assembles the current results into an unsaved report.
func (s *Session) Report() *history.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := &history.Report{
		Source:    s.src.Name(),
		CreatedAt: time.Now(),
		Warnings:  len(s.warnings),
		Metrics:   s.metrics,
		Clusters:  s.partition,
		Layout:    s.layoutRes,
	}
	if s.graph != nil {
		r.Revision = s.graph.Revision()
	}
	return r
}

// History lists stored reports, newest first. It returns an empty list when
// the session has no store.
func (s *Session) History(ctx context.Context, limit int) ([]*history.Report, error) {
	store := s.options().History
	if store == nil {
		return make([]*history.Report, 0), nil
	}
	return store.List(ctx, limit)
}

// View projects the current graph through c and renders it with cluster
// membership.
func (s *Session) View(c lens.Criteria) (*lens.GraphData, error) {
	s.mu.RLock()
	g, p := s.graph, s.partition
	s.mu.RUnlock()
	if g == nil {
		return nil, ErrNotReady
	}
	v, err := lens.Project(g, c)
	if err != nil {
		return nil, err
	}
	return lens.Render(g, v, clusterIndex(p)), nil
}

func clusterIndex(p *clusters.Partition) map[string]int {
	if p == nil {
		return nil
	}
	index := make(map[string]int)
	for _, c := range p.Clusters {
		for _, id := range c.Members {
			index[id] = c.ID
		}
	}
	return index
}

// ShortestPath finds the fewest-hop (or cheapest, for weighted graphs)
// path between two entities.
func (s *Session) ShortestPath(from, to string) (*paths.Path, error) {
	g := s.current()
	if g == nil {
		return nil, ErrNotReady
	}
	return s.options().Finder.Shortest(g, from, to)
}

// AllPaths enumerates simple paths of at most maxDepth hops.
func (s *Session) AllPaths(ctx context.Context, from, to string, maxDepth int) (*paths.Enumeration, error) {
	g := s.current()
	if g == nil {
		return nil, ErrNotReady
	}
	return s.options().Finder.All(ctx, g, from, to, maxDepth)
}

// Select marks one entity as selected.
func (s *Session) Select(id string) error {
	return s.mark(func(g *model.Graph) error { return g.Select(id) })
}

// HighlightNeighbors selects id and highlights its neighbours.
func (s *Session) HighlightNeighbors(id string) ([]string, error) {
	var neighbors []string
	err := s.mark(func(g *model.Graph) error {
		var err error
		neighbors, err = g.HighlightNeighbors(id)
		return err
	})
	return neighbors, err
}

// Highlight highlights an arbitrary id set such as a path or a cluster.
func (s *Session) Highlight(ids []string) error {
	return s.mark(func(g *model.Graph) error { return g.Highlight(ids) })
}

// ClearSelection resets every selection and highlight flag.
func (s *Session) ClearSelection() error {
	return s.mark(func(g *model.Graph) error {
		g.ClearSelection()
		return nil
	})
}

// mark applies a view flag change to a copy and swaps it in.
func (s *Session) mark(apply func(*model.Graph) error) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	current := s.current()
	if current == nil {
		return ErrNotReady
	}
	g := current.Clone()
	if err := apply(g); err != nil {
		return err
	}
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
	s.publishView()
	return nil
}

func (s *Session) status(state, message string, step int) {
	revision := uint64(0)
	if g := s.current(); g != nil {
		revision = g.Revision()
	}
	s.publish(pubsub.TopicSessionStatus, state, pubsub.SessionStatus{
		State:    state,
		Message:  message,
		Step:     step,
		Total:    totalSteps,
		Revision: revision,
	})
}

func (s *Session) publishSummary() {
	s.mu.RLock()
	g, m, p := s.graph, s.metrics, s.partition
	s.mu.RUnlock()
	if g == nil {
		return
	}
	summary := pubsub.AnalysisSummary{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		Revision: g.Revision(),
	}
	if m != nil {
		summary.Density = m.Density
		summary.BridgeNodes = len(m.BridgeNodes)
	}
	if p != nil {
		summary.Clusters = len(p.Clusters)
	}
	s.publish(pubsub.TopicAnalysis, "summary", summary)
}

// publishView renders the unfiltered view and publishes its diff against
// the previous one. Must not be called with mu held.
func (s *Session) publishView() {
	data, err := s.View(lens.Criteria{})
	if err != nil {
		return
	}

	s.mu.Lock()
	diff := lens.ComputeDiff(s.view, data)
	s.view = lens.CreateSnapshot(data)
	s.mu.Unlock()

	if diff.Empty() {
		return
	}
	eventType := "diff"
	if diff.FullGraph {
		eventType = "full"
	}
	s.publish(pubsub.TopicGraph, eventType, diff)
}

func (s *Session) publish(topic, eventType string, data interface{}) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.Publish(topic, eventType, data); err != nil {
		s.logger.Debug(fmt.Sprintf("publish to %s failed", topic), "error", err)
	}
}
