package lens

import (
	"github.com/ritzau/relgraph/pkg/model"
)

// ComputeDistances runs a multi-source BFS from roots, ignoring edge
// direction and skipping edges whose type is excluded. It returns the hop
// distance of every node reached within maxDepth; a negative maxDepth does
// not bound the search. Roots missing from g are ignored.
func ComputeDistances(g *model.Graph, roots []string, excluded map[string]bool, maxDepth int) map[string]int {
	distances := make(map[string]int)
	queue := make([]string, 0, len(roots))
	for _, id := range roots {
		if !g.HasNode(id) {
			continue
		}
		if _, seen := distances[id]; !seen {
			distances[id] = 0
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		d := distances[current]
		if maxDepth >= 0 && d >= maxDepth {
			continue
		}
		for _, e := range g.IncidentEdges(current) {
			if e.IsLoop() || excluded[e.Type] {
				continue
			}
			next := e.Other(current)
			if _, seen := distances[next]; seen {
				continue
			}
			distances[next] = d + 1
			queue = append(queue, next)
		}
	}
	return distances
}
