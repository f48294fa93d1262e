package network

import (
	"context"

	"github.com/ritzau/relgraph/pkg/model"
)

// contextCheckInterval is how many DFS roots or BFS sources run between
// context checks.
const contextCheckInterval = 256

// cut holds the result of one articulation pass.
type cut struct {
	points     []string // articulation points, insertion order
	bridges    []string // bridge edge ids, edge insertion order
	components int
}

type frame struct {
	node       int // insertion index
	parentEdge int // edge index the DFS arrived on, -1 for roots
	next       int // position in the node's incidence list
	children   int
}

// articulation runs an iterative Tarjan DFS over the graph treated as
// undirected. Self-loops are ignored. The parent edge is skipped by index,
// so a parallel edge keeps its twin from being a bridge.
func articulation(ctx context.Context, g *model.Graph) (*cut, error) {
	n := g.NodeCount()
	res := &cut{points: make([]string, 0), bridges: make([]string, 0)}

	edges := g.Edges()
	edgeIdx := make(map[string]int, len(edges))
	for i, e := range edges {
		edgeIdx[e.ID] = i
	}

	// incidence[i] lists (edge index, neighbour index) for node i.
	type arc struct{ edge, to int }
	incidence := make([][]arc, n)
	for i := 0; i < n; i++ {
		id := g.NodeAt(i).ID
		for _, e := range g.IncidentEdges(id) {
			if e.IsLoop() {
				continue
			}
			to, _ := g.Order(e.Other(id))
			incidence[i] = append(incidence[i], arc{edge: edgeIdx[e.ID], to: to})
		}
	}

	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	isPoint := make([]bool, n)
	isBridge := make([]bool, len(edges))
	timer := 0

	for root := 0; root < n; root++ {
		if disc[root] >= 0 {
			continue
		}
		if root%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		res.components++

		disc[root], low[root] = timer, timer
		timer++
		stack := []frame{{node: root, parentEdge: -1}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			u := top.node

			if top.next < len(incidence[u]) {
				a := incidence[u][top.next]
				top.next++
				if a.edge == top.parentEdge {
					continue
				}
				if disc[a.to] >= 0 {
					low[u] = min(low[u], disc[a.to])
					continue
				}
				top.children++
				disc[a.to], low[a.to] = timer, timer
				timer++
				stack = append(stack, frame{node: a.to, parentEdge: a.edge})
				continue
			}

			// u is finished; fold its low-link into the parent.
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				if top.children > 1 {
					isPoint[u] = true
				}
				break
			}
			parent := &stack[len(stack)-1]
			p := parent.node
			low[p] = min(low[p], low[u])
			if low[u] > disc[p] {
				isBridge[top.parentEdge] = true
			}
			if parent.parentEdge >= 0 && low[u] >= disc[p] {
				isPoint[p] = true
			}
		}
	}

	for i, point := range isPoint {
		if point {
			res.points = append(res.points, g.NodeAt(i).ID)
		}
	}
	for i, bridge := range isBridge {
		if bridge {
			res.bridges = append(res.bridges, edges[i].ID)
		}
	}
	return res, nil
}
