package network

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/relgraph/pkg/model"
)

type link struct {
	from, to string
	directed bool
}

func build(t *testing.T, ids []string, links []link) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	for _, id := range ids {
		require.NoError(t, g.AddNode(&model.Node{ID: id}))
	}
	for _, l := range links {
		_, err := g.AddEdge(&model.Edge{Source: l.from, Target: l.to, Weight: model.DefaultWeight, Directed: l.directed})
		require.NoError(t, err)
	}
	return g
}

func analyze(t *testing.T, g *model.Graph) *Metrics {
	t.Helper()
	m, err := Analyzer{}.Analyze(context.Background(), g)
	require.NoError(t, err)
	return m
}

func TestScenarioA_DirectedChain(t *testing.T) {
	g := build(t, []string{"A", "B", "C"}, []link{{"A", "B", true}, {"B", "C", true}})
	m := analyze(t, g)

	assert.Equal(t, 3, m.NodeCount)
	assert.Equal(t, 2, m.EdgeCount)
	assert.InDelta(t, 2.0/6.0, m.Density, 1e-12)
	assert.Empty(t, m.IsolatedNodes)
	assert.NotNil(t, m.IsolatedNodes)
	assert.InDelta(t, 4.0/3.0, m.AveragePathLength, 1e-12)
	assert.Equal(t, 0.0, m.ClusteringCoefficient)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 1}, m.Centrality)
	assert.Equal(t, []string{"B", "A", "C"}, m.MostCentral)
	assert.Equal(t, []string{"B"}, m.BridgeNodes)
	assert.Len(t, m.BridgeEdges, 2)
	assert.Equal(t, 1, m.Components)
	assert.Equal(t, "B", m.MostConnected)
	assert.Equal(t, "A", m.LeastConnected)
	assert.InDelta(t, 4.0/3.0, m.AverageDegree, 1e-12)
	assert.Empty(t, m.Cycles)
	assert.NotNil(t, m.Cycles)
}

func TestScenarioB_NoEdges(t *testing.T) {
	g := build(t, []string{"X", "Y"}, nil)
	m := analyze(t, g)

	assert.Equal(t, 0.0, m.Density)
	assert.Equal(t, []string{"X", "Y"}, m.IsolatedNodes)
	assert.Equal(t, 0.0, m.ClusteringCoefficient)
	assert.Equal(t, 0.0, m.AveragePathLength)
	assert.Empty(t, m.BridgeNodes)
	assert.Equal(t, 2, m.Components)
}

func TestScenarioC_BridgeNode(t *testing.T) {
	g := build(t, []string{"A", "B", "M", "C", "D"}, []link{
		{"A", "B", false}, {"A", "M", false}, {"C", "D", false}, {"C", "M", false},
	})
	m := analyze(t, g)

	assert.Contains(t, m.BridgeNodes, "M")
	assert.Equal(t, []string{"A", "M", "C"}, m.BridgeNodes)
	assert.Len(t, m.BridgeEdges, 4, "every edge of a tree is a bridge")
	assert.Equal(t, 1, m.Components)

	split := g.Clone()
	require.NoError(t, split.RemoveNode("M"))
	after := analyze(t, split)
	assert.Equal(t, 2, after.Components)
	assert.Equal(t, 4, after.NodeCount)
}

func TestTriangle(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, []link{{"a", "b", false}, {"b", "c", false}, {"c", "a", false}})
	m := analyze(t, g)

	assert.Equal(t, 1.0, m.Density)
	assert.Equal(t, 1.0, m.ClusteringCoefficient)
	assert.Empty(t, m.BridgeNodes)
	assert.Empty(t, m.BridgeEdges)
	assert.Equal(t, 1.0, m.AveragePathLength)
}

func TestParallelEdgesAndLoops(t *testing.T) {
	g := build(t, []string{"a", "b", "solo"}, []link{
		{"a", "b", false}, {"a", "b", false}, {"solo", "solo", true},
	})
	m := analyze(t, g)

	assert.InDelta(t, 2.0/6.0, m.Density, 1e-12)
	assert.Equal(t, 2, m.Centrality["a"])
	assert.Equal(t, 0, m.Centrality["solo"])
	assert.Equal(t, []string{"solo"}, m.IsolatedNodes)
	assert.Empty(t, m.BridgeEdges, "a doubled edge is not critical")
	assert.Equal(t, 2, m.Components)
}

func TestMostCentralTopK(t *testing.T) {
	ids := make([]string, 0, 8)
	var links []link
	for i := 0; i < 8; i++ {
		ids = append(ids, fmt.Sprintf("n%d", i))
	}
	for i := 1; i < 8; i++ {
		links = append(links, link{"n0", ids[i], true})
	}
	g := build(t, ids, links)

	m, err := Analyzer{TopK: 3}.Analyze(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []string{"n0", "n1", "n2"}, m.MostCentral, "ties keep insertion order")
}

func TestBetweenness(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, []link{{"a", "b", true}, {"b", "c", true}})
	m := analyze(t, g)

	require.Len(t, m.Betweenness, 3)
	assert.Greater(t, m.Betweenness["b"], 0.0)
	assert.Equal(t, 0.0, m.Betweenness["a"])
	assert.Equal(t, 0.0, m.Betweenness["c"])

	skipped, err := Analyzer{SkipBetweenness: true}.Analyze(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, skipped.Betweenness)
}

func TestCycles(t *testing.T) {
	g := build(t, []string{"A", "B", "C", "D", "E", "F"}, []link{
		{"C", "A", true}, {"A", "B", true}, {"B", "C", true}, // directed loop
		{"C", "D", true},
		{"E", "F", false}, // undirected pairs are not cycles
		{"D", "D", true},  // nor are self-loops
	})
	m := analyze(t, g)
	assert.Equal(t, [][]string{{"A", "B", "C"}}, m.Cycles)
}

func TestEmptyGraph(t *testing.T) {
	m := analyze(t, model.NewGraph())

	assert.Equal(t, 0, m.NodeCount)
	assert.Equal(t, 0.0, m.Density)
	assert.NotNil(t, m.MostCentral)
	assert.NotNil(t, m.BridgeNodes)
	assert.NotNil(t, m.Centrality)
}

func TestCancelledAnalysisReturnsPartialSnapshot(t *testing.T) {
	g := build(t, []string{"A", "B", "C"}, []link{{"A", "B", true}, {"B", "C", true}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := Analyzer{}.Analyze(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, m)
	assert.InDelta(t, 2.0/6.0, m.Density, 1e-12)
}

func randomGraph(t *testing.T, seed uint64, n, m int) *model.Graph {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}
	links := make([]link, 0, m)
	for i := 0; i < m; i++ {
		links = append(links, link{ids[rng.IntN(n)], ids[rng.IntN(n)], rng.IntN(2) == 0})
	}
	return build(t, ids, links)
}

func TestDensityBounds(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		g := randomGraph(t, seed, 8, int(seed)*5)
		m := analyze(t, g)
		assert.GreaterOrEqual(t, m.Density, 0.0, "seed %d", seed)
		assert.LessOrEqual(t, m.Density, 1.0, "seed %d", seed)
		assert.GreaterOrEqual(t, m.ClusteringCoefficient, 0.0)
		assert.LessOrEqual(t, m.ClusteringCoefficient, 1.0)
	}
}

func TestRemovingArticulationPointSplitsComponent(t *testing.T) {
	for seed := uint64(1); seed <= 15; seed++ {
		g := randomGraph(t, seed, 10, 11)
		m := analyze(t, g)

		points := make(map[string]bool)
		for _, p := range m.BridgeNodes {
			points[p] = true
		}
		for _, node := range g.Nodes() {
			reduced := g.Clone()
			require.NoError(t, reduced.RemoveNode(node.ID))
			after := analyze(t, reduced)
			if points[node.ID] {
				assert.Greater(t, after.Components, m.Components, "seed %d node %s", seed, node.ID)
			} else {
				assert.LessOrEqual(t, after.Components, m.Components, "seed %d node %s", seed, node.ID)
			}
		}
	}
}
