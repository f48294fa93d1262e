package paths

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
	weight   float64
	directed bool
}

func build(t *testing.T, ids []string, links []link) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	for _, id := range ids {
		require.NoError(t, g.AddNode(&model.Node{ID: id}))
	}
	for _, l := range links {
		_, err := g.AddEdge(&model.Edge{Source: l.from, Target: l.to, Weight: l.weight, Directed: l.directed})
		require.NoError(t, err)
	}
	return g
}

func TestShortest_ScenarioA(t *testing.T) {
	g := build(t, []string{"A", "B", "C"}, []link{{"A", "B", 1, true}, {"B", "C", 1, true}})

	p, err := Finder{}.Shortest(g, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, p.Nodes)
	assert.Equal(t, 2, p.Hops())
	assert.Equal(t, 2.0, p.Cost)

	_, err = Finder{}.Shortest(g, "C", "A")
	assert.ErrorIs(t, err, ErrNoPath, "edges are directed")
}

func TestShortest_UndirectedGoesBothWays(t *testing.T) {
	g := build(t, []string{"A", "B"}, []link{{"A", "B", 1, false}})

	p, err := Finder{}.Shortest(g, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, p.Nodes)
}

func TestShortest_WeightedPrefersCheaperRoute(t *testing.T) {
	g := build(t, []string{"s", "a", "b", "t"}, []link{
		{"s", "t", 10, true},
		{"s", "a", 1, true},
		{"a", "b", 1, true},
		{"b", "t", 1, true},
	})

	p, err := Finder{}.Shortest(g, "s", "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "a", "b", "t"}, p.Nodes)
	assert.Equal(t, 3.0, p.Cost)
}

func TestShortest_ZeroWeightEdges(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, []link{
		{"a", "b", 0, true},
		{"b", "c", 0, true},
		{"a", "c", 0.5, true},
	})

	p, err := Finder{}.Shortest(g, "a", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Nodes)
	assert.Equal(t, 0.0, p.Cost)
}

func TestShortest_SameNode(t *testing.T) {
	g := build(t, []string{"A"}, nil)
	p, err := Finder{}.Shortest(g, "A", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, p.Nodes)
	assert.Equal(t, 0, p.Hops())
}

func TestShortest_UnknownNode(t *testing.T) {
	g := build(t, []string{"A"}, nil)
	_, err := Finder{}.Shortest(g, "A", "Z")
	assert.ErrorIs(t, err, model.ErrUnknownNode)

	_, err = Finder{}.All(context.Background(), g, "Z", "A", 3)
	assert.ErrorIs(t, err, model.ErrUnknownNode)
}

func TestShortest_Unreachable(t *testing.T) {
	g := build(t, []string{"X", "Y"}, nil)
	_, err := Finder{}.Shortest(g, "X", "Y")
	assert.ErrorIs(t, err, ErrNoPath)

	g = build(t, []string{"X", "Y", "Z"}, []link{{"X", "Y", 2, true}, {"Z", "X", 5, true}})
	_, err = Finder{}.Shortest(g, "X", "Z")
	assert.ErrorIs(t, err, ErrNoPath, "weighted search reports unreachable targets too")
}

func diamond(t *testing.T) *model.Graph {
	return build(t, []string{"s", "a", "b", "c", "t"}, []link{
		{"s", "a", 1, true},
		{"s", "b", 1, true},
		{"a", "t", 1, true},
		{"b", "c", 1, true},
		{"c", "t", 1, true},
	})
}

func TestAll(t *testing.T) {
	res, err := Finder{}.All(context.Background(), diamond(t), "s", "t", 5)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	require.Len(t, res.Paths, 2)
	assert.Equal(t, []string{"s", "a", "t"}, res.Paths[0].Nodes)
	assert.Equal(t, []string{"s", "b", "c", "t"}, res.Paths[1].Nodes)
}

func TestAll_DepthBoundTruncates(t *testing.T) {
	res, err := Finder{}.All(context.Background(), diamond(t), "s", "t", 2)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, []string{"s", "a", "t"}, res.Paths[0].Nodes)
}

func TestAll_PathCap(t *testing.T) {
	res, err := Finder{MaxPaths: 1}.All(context.Background(), diamond(t), "s", "t", 5)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Paths, 1)
}

func TestAll_RejectsBadDepth(t *testing.T) {
	g := diamond(t)
	for _, depth := range []int{0, -1, 11} {
		_, err := Finder{}.All(context.Background(), g, "s", "t", depth)
		assert.ErrorIs(t, err, ErrDepthExceeded, "depth %d", depth)
	}

	_, err := Finder{MaxDepthLimit: 3}.All(context.Background(), g, "s", "t", 4)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestAll_SkipsCycles(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, []link{
		{"a", "b", 1, false}, {"b", "c", 1, false}, {"c", "a", 1, false},
	})
	res, err := Finder{}.All(context.Background(), g, "a", "c", 5)
	require.NoError(t, err)
	assert.Len(t, res.Paths, 2)
	for _, p := range res.Paths {
		seen := make(map[string]bool)
		for _, n := range p.Nodes {
			assert.False(t, seen[n], "path %v revisits %s", p.Nodes, n)
			seen[n] = true
		}
	}
}

func TestShortestNeverLongerThanAnyPath(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewPCG(seed, 42))
		ids := make([]string, 7)
		for i := range ids {
			ids[i] = fmt.Sprintf("v%d", i)
		}
		var links []link
		for i := 0; i < 12; i++ {
			links = append(links, link{ids[rng.IntN(7)], ids[rng.IntN(7)], 1, rng.IntN(3) > 0})
		}
		g := build(t, ids, links)

		shortest, err := Finder{}.Shortest(g, "v0", "v6")
		all, allErr := Finder{}.All(context.Background(), g, "v0", "v6", 6)
		require.NoError(t, allErr)

		if err != nil {
			assert.ErrorIs(t, err, ErrNoPath)
			assert.Empty(t, all.Paths, "seed %d", seed)
			continue
		}
		require.NotEmpty(t, all.Paths, "seed %d", seed)
		minHops := all.Paths[0].Hops()
		for _, p := range all.Paths {
			assert.LessOrEqual(t, shortest.Hops(), p.Hops(), "seed %d", seed)
			minHops = min(minHops, p.Hops())
		}
		assert.Equal(t, minHops, shortest.Hops(), "seed %d", seed)
	}
}
