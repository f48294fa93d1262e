package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/lens"
	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/paths"
	"github.com/ritzau/relgraph/pkg/pubsub"
	"github.com/ritzau/relgraph/pkg/source"
)

type recorded struct {
	topic, eventType string
	data             interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recorded
}

func (p *recordingPublisher) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	return nil, errors.New("not supported")
}

func (p *recordingPublisher) Publish(topic, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recorded{topic, eventType, data})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) states() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var states []string
	for _, e := range p.events {
		if e.topic == pubsub.TopicSessionStatus {
			states = append(states, e.eventType)
		}
	}
	return states
}

func (p *recordingPublisher) last(topic string) (recorded, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].topic == topic {
			return p.events[i], true
		}
	}
	return recorded{}, false
}

// star: A -> M -> C, M -> B, plus a dangling relationship to Z.
func star() *source.Snapshot {
	return &source.Snapshot{
		Entities: []source.Entity{{ID: "A"}, {ID: "M", DisplayName: "Market"}, {ID: "B"}, {ID: "C"}},
		Relationships: []source.Relationship{
			{SourceID: "A", TargetID: "M", Type: "trades"},
			{SourceID: "M", TargetID: "C", Type: "trades"},
			{SourceID: "M", TargetID: "B", Type: "owns"},
			{SourceID: "B", TargetID: "Z", Type: "owns"},
		},
	}
}

func newSession(t *testing.T, opts Options) (*Session, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	opts.Publisher = pub
	s, err := New(source.NewMemorySource("star", star()), opts)
	require.NoError(t, err)
	return s, pub
}

func TestRunPublishesAllStages(t *testing.T) {
	store, err := history.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	opts := DefaultOptions()
	opts.History = store
	s, pub := newSession(t, opts)

	report, err := s.Run(context.Background(), RunOptions{Reason: "test"})
	require.NoError(t, err)

	assert.Equal(t, []string{"building", "layout", "analyzing", "clustering", "ready"}, pub.states())
	assert.Equal(t, 1, report.Warnings)
	require.NotNil(t, report.Metrics)
	assert.Equal(t, 4, report.Metrics.NodeCount)
	assert.Equal(t, []string{"M"}, report.Metrics.BridgeNodes)
	require.NotNil(t, report.Clusters)
	assert.Len(t, report.Clusters.Clusters, 1)
	require.NotNil(t, report.Layout)
	assert.Equal(t, layout.ForceDirected, report.Layout.Strategy)

	summary, ok := pub.last(pubsub.TopicAnalysis)
	require.True(t, ok)
	assert.Equal(t, 4, summary.data.(pubsub.AnalysisSummary).Nodes)

	stored, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, report.ID, stored[0].ID)

	for _, n := range s.Graph().Nodes() {
		assert.True(t, n.Placed, "node %s placed", n.ID)
	}
}

func TestReadsBeforeBuild(t *testing.T) {
	s, _ := newSession(t, DefaultOptions())
	assert.Nil(t, s.Graph())
	_, err := s.View(lens.Criteria{})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.ShortestPath("A", "C")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Run(context.Background(), RunOptions{SkipBuild: true})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, s.Select("A"), ErrNotReady)
}

func TestFailedBuildKeepsSnapshot(t *testing.T) {
	src := &source.MockSource{MockSnapshot: star()}
	pub := &recordingPublisher{}
	opts := DefaultOptions()
	opts.Publisher = pub
	s, err := New(src, opts)
	require.NoError(t, err)
	require.NoError(t, s.Rebuild(context.Background()))
	before := s.Graph()

	src.MockError = errors.New("disk gone")
	_, err = s.Run(context.Background(), RunOptions{Reason: "retry"})
	require.Error(t, err)
	assert.Same(t, before, s.Graph())
	status, ok := pub.last(pubsub.TopicSessionStatus)
	require.True(t, ok)
	assert.Equal(t, "failed", status.eventType)
}

func TestCancelledLayoutIsDiscarded(t *testing.T) {
	s, pub := newSession(t, DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background()))
	before := s.Graph()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Relayout(ctx, layout.ForceDirected)
	require.ErrorIs(t, err, context.Canceled)
	assert.Same(t, before, s.Graph())
	assert.Nil(t, s.Layout())

	_, err = s.Run(ctx, RunOptions{SkipBuild: true})
	require.ErrorIs(t, err, context.Canceled)
	status, _ := pub.last(pubsub.TopicSessionStatus)
	assert.Equal(t, "cancelled", status.eventType)
}

func TestRelayoutSwapsCopy(t *testing.T) {
	s, _ := newSession(t, DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background()))
	before := s.Graph()

	res, err := s.Relayout(context.Background(), layout.Grid)
	require.NoError(t, err)
	assert.Equal(t, layout.Grid, res.Strategy)

	after := s.Graph()
	assert.NotSame(t, before, after)
	for _, n := range before.Nodes() {
		assert.False(t, n.Placed, "old snapshot must not be touched")
	}
	m, _ := after.Node("M")
	assert.True(t, m.Placed)
}

func TestRebuildKeepsPositions(t *testing.T) {
	s, _ := newSession(t, DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background()))
	_, err := s.Relayout(context.Background(), layout.Circular)
	require.NoError(t, err)
	placed, _ := s.Graph().Node("C")
	pos := placed.Position

	require.NoError(t, s.Rebuild(context.Background()))
	rebuilt, _ := s.Graph().Node("C")
	assert.True(t, rebuilt.Placed)
	assert.Equal(t, pos, rebuilt.Position)
	assert.Nil(t, s.Metrics())
}

func TestViewCarriesClusters(t *testing.T) {
	s, pub := newSession(t, DefaultOptions())
	_, err := s.Run(context.Background(), RunOptions{SkipLayout: true})
	require.NoError(t, err)

	data, err := s.View(lens.Criteria{Search: "mark"})
	require.NoError(t, err)
	require.Len(t, data.Nodes, 1)
	assert.Equal(t, "M", data.Nodes[0].ID)
	assert.Equal(t, 0, data.Nodes[0].Cluster)

	_, err = s.View(lens.Criteria{Root: "nope"})
	assert.ErrorIs(t, err, model.ErrUnknownNode)

	event, ok := pub.last(pubsub.TopicGraph)
	require.True(t, ok)
	diff := event.data.(*lens.GraphDiff)
	assert.False(t, diff.Empty())
}

func TestSelectionAndHighlight(t *testing.T) {
	s, pub := newSession(t, DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background()))

	neighbors, err := s.HighlightNeighbors("M")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, neighbors)

	g := s.Graph()
	m, _ := g.Node("M")
	a, _ := g.Node("A")
	assert.True(t, m.Selected)
	assert.True(t, a.Highlighted)

	event, ok := pub.last(pubsub.TopicGraph)
	require.True(t, ok)
	assert.Equal(t, "diff", event.eventType)
	assert.Len(t, event.data.(*lens.GraphDiff).ModifiedNodes, 4)

	require.NoError(t, s.ClearSelection())
	m, _ = s.Graph().Node("M")
	assert.False(t, m.Selected)

	assert.ErrorIs(t, s.Select("nope"), model.ErrUnknownNode)
	assert.ErrorIs(t, s.Highlight([]string{"A", "nope"}), model.ErrUnknownNode)
}

func TestPaths(t *testing.T) {
	s, _ := newSession(t, DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background()))

	p, err := s.ShortestPath("A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "M", "C"}, p.Nodes)

	_, err = s.ShortestPath("C", "A")
	assert.ErrorIs(t, err, paths.ErrNoPath)

	all, err := s.AllPaths(context.Background(), "A", "B", 3)
	require.NoError(t, err)
	require.Len(t, all.Paths, 1)
	assert.Equal(t, []string{"A", "M", "B"}, all.Paths[0].Nodes)
}

func TestReconfigure(t *testing.T) {
	s, pub := newSession(t, DefaultOptions())
	opts := DefaultOptions()
	opts.Strategy = layout.Hierarchical
	require.NoError(t, s.Reconfigure(opts))

	_, err := s.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, layout.Hierarchical, s.Layout().Strategy)
	assert.NotEmpty(t, pub.states(), "publisher kept across reconfigure")

	bad := DefaultOptions()
	bad.Strategy = "spiral"
	assert.ErrorIs(t, s.Reconfigure(bad), layout.ErrUnknownStrategy)
}
