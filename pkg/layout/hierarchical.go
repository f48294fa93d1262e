package layout

import (
	"github.com/ritzau/relgraph/pkg/model"
)

// hierarchical stacks BFS layers top to bottom. Roots are nodes without
// incoming edges; when every node has one the first node is the root.
// Components the roots cannot reach are layered below, each starting from
// its first node in insertion order.
func (e *Engine) hierarchical(g *model.Graph) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return
	}

	roots := make([]string, 0)
	for _, n := range nodes {
		if len(g.Neighbors(n.ID, model.In)) == 0 {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) == 0 {
		roots = append(roots, nodes[0].ID)
	}

	seen := make(map[string]bool, len(nodes))
	layers := layer(g, roots, seen)
	for _, n := range nodes {
		if !seen[n.ID] {
			layers = append(layers, layer(g, []string{n.ID}, seen)...)
		}
	}

	for depth, ids := range layers {
		y := float64(depth) * e.opts.LayerSpacing
		half := float64(len(ids)) * 0.5
		for i, id := range ids {
			n, _ := g.Node(id)
			place(n, (float64(i)-half)*e.opts.NodeSpacing, y)
		}
	}
}

// layer runs a multi-source BFS along outgoing edges and returns the node
// ids grouped by distance from the start set.
func layer(g *model.Graph, start []string, seen map[string]bool) [][]string {
	current := make([]string, 0, len(start))
	for _, id := range start {
		if !seen[id] {
			seen[id] = true
			current = append(current, id)
		}
	}

	var layers [][]string
	for len(current) > 0 {
		layers = append(layers, current)
		next := make([]string, 0)
		for _, id := range current {
			for _, nb := range g.Neighbors(id, model.Out) {
				if !seen[nb] {
					seen[nb] = true
					next = append(next, nb)
				}
			}
		}
		current = next
	}
	return layers
}
