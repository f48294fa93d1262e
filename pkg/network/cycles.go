package network

import (
	"sort"

	"github.com/ritzau/relgraph/pkg/model"
)

// tarjanSCC finds strongly connected components along directed
// relationships. Undirected edges and self-loops are ignored.
type tarjanSCC struct {
	g       *model.Graph
	index   int
	stack   []string
	onStack map[string]bool
	indices map[string]int
	lowLink map[string]int
	sccs    [][]string
}

// cycles returns every group of two or more entities that can reach each
// other along directed relationships. Members follow insertion order and
// groups are ordered by their first member.
func cycles(g *model.Graph, nodes []*model.Node) [][]string {
	t := &tarjanSCC{
		g:       g,
		stack:   make([]string, 0),
		onStack: make(map[string]bool),
		indices: make(map[string]int),
		lowLink: make(map[string]int),
		sccs:    make([][]string, 0),
	}
	for _, node := range nodes {
		if _, visited := t.indices[node.ID]; !visited {
			t.strongConnect(node.ID)
		}
	}

	for _, scc := range t.sccs {
		sort.Slice(scc, func(i, j int) bool {
			oi, _ := g.Order(scc[i])
			oj, _ := g.Order(scc[j])
			return oi < oj
		})
	}
	sort.Slice(t.sccs, func(i, j int) bool {
		oi, _ := g.Order(t.sccs[i][0])
		oj, _ := g.Order(t.sccs[j][0])
		return oi < oj
	})
	return t.sccs
}

func (t *tarjanSCC) successors(id string) []string {
	var out []string
	for _, e := range t.g.IncidentEdges(id) {
		if e.Directed && e.Source == id && !e.IsLoop() {
			out = append(out, e.Target)
		}
	}
	return out
}

func (t *tarjanSCC) strongConnect(id string) {
	t.indices[id] = t.index
	t.lowLink[id] = t.index
	t.index++

	t.stack = append(t.stack, id)
	t.onStack[id] = true

	for _, next := range t.successors(id) {
		if _, visited := t.indices[next]; !visited {
			t.strongConnect(next)
			t.lowLink[id] = min(t.lowLink[id], t.lowLink[next])
		} else if t.onStack[next] {
			t.lowLink[id] = min(t.lowLink[id], t.indices[next])
		}
	}

	// id is the root of a component: pop it.
	if t.lowLink[id] == t.indices[id] {
		scc := make([]string, 0)
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == id {
				break
			}
		}
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
