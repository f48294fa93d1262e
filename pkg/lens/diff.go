package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// GraphDiff is the change between two renders of a view.
type GraphDiff struct {
	Revision      uint64      `json:"revision"`
	AddedNodes    []GraphNode `json:"addedNodes"`
	RemovedNodes  []string    `json:"removedNodes"`  // node ids
	ModifiedNodes []GraphNode `json:"modifiedNodes"` // moved or restyled nodes
	AddedEdges    []GraphEdge `json:"addedEdges"`
	RemovedEdges  []string    `json:"removedEdges"` // edge ids
	FullGraph     bool        `json:"fullGraph"`    // true when there was nothing to diff against
}

// Empty reports whether the diff carries no change.
func (d *GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// GraphSnapshot is a rendered view indexed for diffing.
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]GraphNode
	Edges map[string]GraphEdge
}

// ComputeHash identifies a criteria set, so clients watching the same view
// can share a snapshot.
func ComputeHash(c Criteria) string {
	excluded := append([]string(nil), c.ExcludedTypes...)
	sort.Strings(excluded)
	c.ExcludedTypes = excluded

	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// CreateSnapshot indexes a render for later diffing.
func CreateSnapshot(graph *GraphData) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Nodes: make(map[string]GraphNode, len(graph.Nodes)),
		Edges: make(map[string]GraphEdge, len(graph.Edges)),
	}
	for _, node := range graph.Nodes {
		snapshot.Nodes[node.ID] = node
	}
	for _, edge := range graph.Edges {
		snapshot.Edges[edge.ID] = edge
	}

	data, _ := json.Marshal(graph.Nodes)
	edges, _ := json.Marshal(graph.Edges)
	snapshot.Hash = fmt.Sprintf("%x", sha256.Sum256(append(data, edges...)))
	return snapshot
}

// ComputeDiff compares a new render against an old snapshot. A nil
// snapshot yields the full graph. Output follows the new render's order;
// removals follow id order.
func ComputeDiff(old *GraphSnapshot, graph *GraphData) *GraphDiff {
	if old == nil {
		return &GraphDiff{
			Revision:      graph.Revision,
			AddedNodes:    graph.Nodes,
			RemovedNodes:  make([]string, 0),
			ModifiedNodes: make([]GraphNode, 0),
			AddedEdges:    graph.Edges,
			RemovedEdges:  make([]string, 0),
			FullGraph:     true,
		}
	}

	diff := &GraphDiff{
		Revision:      graph.Revision,
		AddedNodes:    make([]GraphNode, 0),
		RemovedNodes:  make([]string, 0),
		ModifiedNodes: make([]GraphNode, 0),
		AddedEdges:    make([]GraphEdge, 0),
		RemovedEdges:  make([]string, 0),
	}

	current := make(map[string]bool, len(graph.Nodes))
	for _, node := range graph.Nodes {
		current[node.ID] = true
		prev, exists := old.Nodes[node.ID]
		switch {
		case !exists:
			diff.AddedNodes = append(diff.AddedNodes, node)
		case prev != node:
			diff.ModifiedNodes = append(diff.ModifiedNodes, node)
		}
	}
	for id := range old.Nodes {
		if !current[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	currentEdges := make(map[string]bool, len(graph.Edges))
	for _, edge := range graph.Edges {
		currentEdges[edge.ID] = true
		prev, exists := old.Edges[edge.ID]
		if !exists {
			diff.AddedEdges = append(diff.AddedEdges, edge)
		} else if prev != edge {
			// An edge id reused for different endpoints is a replace.
			diff.RemovedEdges = append(diff.RemovedEdges, edge.ID)
			diff.AddedEdges = append(diff.AddedEdges, edge)
		}
	}
	for id := range old.Edges {
		if !currentEdges[id] {
			diff.RemovedEdges = append(diff.RemovedEdges, id)
		}
	}

	sort.Strings(diff.RemovedNodes)
	sort.Strings(diff.RemovedEdges)
	return diff
}
