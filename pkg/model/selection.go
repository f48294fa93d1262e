package model

import "fmt"

// Select marks a single node as selected, clearing any previous selection
// and highlight.
func (g *Graph) Select(id string) error {
	node, exists := g.Node(id)
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	g.ClearSelection()
	node.Selected = true
	return nil
}

// ClearSelection resets the selected and highlighted flags on every node.
func (g *Graph) ClearSelection() {
	for _, node := range g.nodes {
		node.Selected = false
		node.Highlighted = false
	}
}

// HighlightNeighbors selects a node and highlights everything adjacent to
// it in either direction. It returns the highlighted ids.
func (g *Graph) HighlightNeighbors(id string) ([]string, error) {
	if err := g.Select(id); err != nil {
		return nil, err
	}
	neighbors := g.Neighbors(id, Both)
	for _, neighborID := range neighbors {
		node, _ := g.Node(neighborID)
		node.Highlighted = true
	}
	return neighbors, nil
}

// Highlight marks the given nodes as highlighted, e.g. a path or a cluster.
// Unknown ids are reported and nothing is changed.
func (g *Graph) Highlight(ids []string) error {
	for _, id := range ids {
		if !g.HasNode(id) {
			return fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
	}
	g.ClearSelection()
	for _, id := range ids {
		node, _ := g.Node(id)
		node.Highlighted = true
	}
	return nil
}

// Size returns the display radius for a node: 15 plus 2 per connection,
// clamped to [10, 40].
func (n *Node) Size() float64 {
	return min(max(15+2*float64(n.Degree), 10), 40)
}
