package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/source"
)

func world() *source.Snapshot {
	return &source.Snapshot{
		Entities: []source.Entity{
			{ID: "1", DisplayName: "Ada"},
			{ID: "2", DisplayName: "Grace"},
			{ID: "3"},
		},
		Relationships: []source.Relationship{
			{SourceID: "1", TargetID: "2", Type: "Parent"},
			{SourceID: "2", TargetID: "3", Type: "Friend", Weight: source.Float(2), Directed: source.Bool(false)},
		},
	}
}

func TestBuild(t *testing.T) {
	mock := &source.MockSource{MockSnapshot: world()}

	res, err := Build(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "mock", res.Source)

	g := res.Graph
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	ada, ok := g.Node("1")
	require.True(t, ok)
	assert.Equal(t, "Ada", ada.Label)

	third, _ := g.Node("3")
	assert.Equal(t, "3", third.Label, "label falls back to id")

	edges := g.Edges()
	assert.True(t, edges[0].Directed)
	assert.Equal(t, model.DefaultWeight, edges[0].Weight)
	assert.False(t, edges[1].Directed)
	assert.Equal(t, 2.0, edges[1].Weight)

	assert.Equal(t, 2, g.Degree("2"))
	assert.Equal(t, []string{"1", "3"}, g.Neighbors("2", model.Both))
	assert.Equal(t, []string{"2"}, g.Neighbors("3", model.Out), "undirected edge walks both ways")
}

func TestBuild_SkipsDanglingRelationships(t *testing.T) {
	snap := world()
	snap.Relationships = append(snap.Relationships, source.Relationship{SourceID: "1", TargetID: "99", Type: "Owns"})

	res, err := Build(context.Background(), &source.MockSource{MockSnapshot: snap})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, "relationship", w.Kind)
	assert.Equal(t, 2, w.Index)
	assert.True(t, errors.Is(w, model.ErrInvalidReference))
	assert.Equal(t, 2, res.Graph.EdgeCount())
}

func TestBuild_SkipsMalformedRelationships(t *testing.T) {
	snap := &source.Snapshot{
		Entities: []source.Entity{{ID: "a"}, {ID: "b"}},
		Relationships: []source.Relationship{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "", TargetID: "b"},
			{SourceID: "b", TargetID: "a", Weight: source.Float(-1)},
		},
	}

	res, err := Build(context.Background(), source.NewMemorySource("mem", snap))
	require.NoError(t, err)

	require.Len(t, res.Warnings, 2)
	for i, w := range res.Warnings {
		assert.Equal(t, "relationship", w.Kind)
		assert.Equal(t, i+1, w.Index)
		assert.ErrorIs(t, w, model.ErrInvalidReference)
	}
	require.Equal(t, 1, res.Graph.EdgeCount())
	edge := res.Graph.Edges()[0]
	assert.Equal(t, "a", edge.Source)
	assert.Equal(t, "b", edge.Target)
}

func TestBuild_KeepsExplicitZeroWeight(t *testing.T) {
	snap := &source.Snapshot{
		Entities:      []source.Entity{{ID: "a"}, {ID: "b"}},
		Relationships: []source.Relationship{{SourceID: "a", TargetID: "b", Weight: source.Float(0)}},
	}

	g, warnings, err := FromSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0.0, g.Edges()[0].Weight)
}

func TestBuild_DuplicateEntityKeepsFirst(t *testing.T) {
	snap := world()
	snap.Entities = append(snap.Entities, source.Entity{ID: "1", DisplayName: "Impostor"})

	res, err := Build(context.Background(), &source.MockSource{MockSnapshot: snap})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrDuplicateEntity)

	ada, _ := res.Graph.Node("1")
	assert.Equal(t, "Ada", ada.Label)
	assert.Equal(t, 3, res.Graph.NodeCount())
}

func TestBuild_SourceFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Build(context.Background(), &source.MockSource{MockError: boom})
	assert.ErrorIs(t, err, boom)
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := FromSnapshot(ctx, world())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_ReturnsFreshGraph(t *testing.T) {
	mock := &source.MockSource{MockSnapshot: world()}

	first, err := Build(context.Background(), mock)
	require.NoError(t, err)
	second, err := Build(context.Background(), mock)
	require.NoError(t, err)

	require.NoError(t, first.Graph.RemoveNode("1"))
	assert.Equal(t, 3, second.Graph.NodeCount())
}
