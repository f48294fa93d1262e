// Package lens projects a graph onto the subset a viewer asked for and
// renders that subset for clients. Nothing in this package mutates the
// graph.
package lens

import (
	"fmt"
	"strings"

	"github.com/ritzau/relgraph/pkg/model"
)

// Criteria selects the visible part of a graph. Unset fields do not filter.
type Criteria struct {
	// Search keeps nodes whose label contains it, case-insensitively.
	Search string `json:"search,omitempty"`
	// ExcludedTypes hides edges of these relationship types.
	ExcludedTypes []string `json:"excludedTypes,omitempty"`
	// Root restricts the view to nodes within MaxDepth hops of it,
	// walking non-excluded edges in both directions. A negative MaxDepth
	// keeps everything reachable.
	Root     string `json:"root,omitempty"`
	MaxDepth int    `json:"maxDepth,omitempty"`
	// Bidirectional keeps only undirected edges and directed edges whose
	// reverse is also present.
	Bidirectional bool `json:"bidirectional,omitempty"`
}

// View is the visible node and edge id sets, both in graph insertion order.
type View struct {
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds"`
}

func (c Criteria) excluded() map[string]bool {
	set := make(map[string]bool, len(c.ExcludedTypes))
	for _, t := range c.ExcludedTypes {
		set[t] = true
	}
	return set
}

// Project computes the view of g under c. It returns model.ErrUnknownNode
// when Root names a node that is not in g.
func Project(g *model.Graph, c Criteria) (View, error) {
	excluded := c.excluded()

	var reach map[string]int
	if c.Root != "" {
		if !g.HasNode(c.Root) {
			return View{}, fmt.Errorf("%w: lens root %s", model.ErrUnknownNode, c.Root)
		}
		reach = ComputeDistances(g, []string{c.Root}, excluded, c.MaxDepth)
	}

	search := strings.ToLower(c.Search)
	view := View{NodeIDs: make([]string, 0), EdgeIDs: make([]string, 0)}
	visible := make(map[string]bool)
	for _, n := range g.Nodes() {
		if search != "" && !strings.Contains(strings.ToLower(n.Label), search) {
			continue
		}
		if reach != nil {
			if _, ok := reach[n.ID]; !ok {
				continue
			}
		}
		visible[n.ID] = true
		view.NodeIDs = append(view.NodeIDs, n.ID)
	}

	var reverse map[[2]string]bool
	if c.Bidirectional {
		reverse = make(map[[2]string]bool)
		for _, e := range g.Edges() {
			if e.Directed && !excluded[e.Type] {
				reverse[[2]string{e.Source, e.Target}] = true
			}
		}
	}

	for _, e := range g.Edges() {
		if excluded[e.Type] || !visible[e.Source] || !visible[e.Target] {
			continue
		}
		if c.Bidirectional && e.Directed && !reverse[[2]string{e.Target, e.Source}] {
			continue
		}
		view.EdgeIDs = append(view.EdgeIDs, e.ID)
	}
	return view, nil
}
