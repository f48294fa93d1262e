package model

import (
	"math"

	"gonum.org/v1/gonum/graph/simple"
)

// The gonum views use a node's insertion position as its int64 id, so
// NodeAt(int(id)) maps results back to graph nodes.

// UndirectedView returns the graph as a simple undirected gonum graph.
// Direction, self-loops and parallel edges are dropped.
func (g *Graph) UndirectedView() *simple.UndirectedGraph {
	g.Reindex()

	ug := simple.NewUndirectedGraph()
	for i := range g.nodes {
		ug.AddNode(simple.Node(int64(i)))
	}
	for i, node := range g.nodes {
		for _, e := range g.adjacency[node.ID] {
			edge := g.edges[e]
			if edge.IsLoop() {
				continue
			}
			j := g.nodeIndex[edge.Other(node.ID)]
			if ug.HasEdgeBetween(int64(i), int64(j)) {
				continue
			}
			ug.SetEdge(ug.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
		}
	}
	return ug
}

// WeightedView returns the graph as a weighted directed gonum graph.
// Undirected edges become a pair of arcs; parallel arcs keep the lowest
// weight; self-loops are dropped.
func (g *Graph) WeightedView() *simple.WeightedDirectedGraph {
	g.Reindex()

	wg := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := range g.nodes {
		wg.AddNode(simple.Node(int64(i)))
	}

	setArc := func(from, to int64, weight float64) {
		if existing := wg.WeightedEdge(from, to); existing != nil && existing.Weight() <= weight {
			return
		}
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(from), simple.Node(to), weight))
	}

	for _, edge := range g.edges {
		if edge.IsLoop() {
			continue
		}
		from := int64(g.nodeIndex[edge.Source])
		to := int64(g.nodeIndex[edge.Target])
		setArc(from, to, edge.Weight)
		if !edge.Directed {
			setArc(to, from, edge.Weight)
		}
	}
	return wg
}
