// Package model holds the entity relationship graph: nodes, edges and the
// adjacency index every analysis component reads from.
package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrInvalidReference is returned when an edge names an endpoint that is
	// not part of the graph.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrUnknownNode is returned when a node id is not part of the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownEdge is returned when an edge id is not part of the graph.
	ErrUnknownEdge = errors.New("unknown edge")
	// ErrDuplicateID is returned when a node or edge id is already taken.
	ErrDuplicateID = errors.New("duplicate id")
)

// DefaultWeight is the weight builders give relationships without one.
const DefaultWeight = 1.0

// Direction selects which incident edges a neighbour query follows.
type Direction int

const (
	Out  Direction = iota // edges leaving the node
	In                    // edges entering the node
	Both                  // all incident edges
)

// Node represents one entity in the relationship graph.
type Node struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position r2.Vec `json:"position"`
	Velocity r2.Vec `json:"-"` // only meaningful during force-directed iteration
	Placed   bool   `json:"placed"`
	Degree   int    `json:"degree"` // incident edges, maintained by the index

	Selected    bool `json:"selected,omitempty"`
	Highlighted bool `json:"highlighted,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Edge represents one relationship between two nodes.
type Edge struct {
	ID       string                 `json:"id"`
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	Type     string                 `json:"type"`
	Weight   float64                `json:"weight"`
	Directed bool                   `json:"directed"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IsLoop reports whether the edge starts and ends at the same node.
func (e *Edge) IsLoop() bool {
	return e.Source == e.Target
}

// Other returns the endpoint opposite to id.
func (e *Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// follows reports whether the edge can be walked from id in direction dir.
func (e *Edge) follows(id string, dir Direction) bool {
	switch dir {
	case Out:
		return e.Source == id || (!e.Directed && e.Target == id)
	case In:
		return e.Target == id || (!e.Directed && e.Source == id)
	default:
		return e.Source == id || e.Target == id
	}
}

// Graph owns an ordered set of nodes and edges. Node and edge lookups go
// through hash indices; the adjacency index is derived and rebuilt lazily on
// the first read after a mutation.
type Graph struct {
	nodes     []*Node
	nodeIndex map[string]int
	edges     []*Edge
	edgeIndex map[string]int
	nextEdge  int

	adjacency map[string][]int // node id -> indices into edges
	stale     bool
	revision  uint64
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make([]*Node, 0),
		nodeIndex: make(map[string]int),
		edges:     make([]*Edge, 0),
		edgeIndex: make(map[string]int),
		adjacency: make(map[string][]int),
	}
}

// AddNode adds a node to the graph. The label defaults to the id.
func (g *Graph) AddNode(node *Node) error {
	if node.ID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidReference)
	}
	if _, exists := g.nodeIndex[node.ID]; exists {
		return fmt.Errorf("%w: node %s", ErrDuplicateID, node.ID)
	}
	if node.Label == "" {
		node.Label = node.ID
	}
	if node.Metadata == nil {
		node.Metadata = make(map[string]interface{})
	}
	g.nodeIndex[node.ID] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.touch()
	return nil
}

// RemoveNode removes a node and every edge incident to it.
func (g *Graph) RemoveNode(id string) error {
	pos, exists := g.nodeIndex[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	kept := g.edges[:0]
	for _, edge := range g.edges {
		if edge.Source != id && edge.Target != id {
			kept = append(kept, edge)
		}
	}
	g.edges = kept
	g.reindexEdges()

	g.nodes = append(g.nodes[:pos], g.nodes[pos+1:]...)
	delete(g.nodeIndex, id)
	for i := pos; i < len(g.nodes); i++ {
		g.nodeIndex[g.nodes[i].ID] = i
	}

	g.touch()
	return nil
}

// AddEdge adds an edge between two existing nodes and returns its id. An id
// is generated when the edge has none. The weight is stored as given; zero
// is a valid weight.
func (g *Graph) AddEdge(edge *Edge) (string, error) {
	if _, ok := g.nodeIndex[edge.Source]; !ok {
		return "", fmt.Errorf("%w: edge source %q", ErrInvalidReference, edge.Source)
	}
	if _, ok := g.nodeIndex[edge.Target]; !ok {
		return "", fmt.Errorf("%w: edge target %q", ErrInvalidReference, edge.Target)
	}
	if edge.Weight < 0 {
		return "", fmt.Errorf("%w: negative weight %g on %s -> %s",
			ErrInvalidReference, edge.Weight, edge.Source, edge.Target)
	}

	if edge.ID == "" {
		for {
			g.nextEdge++
			edge.ID = fmt.Sprintf("e%d", g.nextEdge)
			if _, taken := g.edgeIndex[edge.ID]; !taken {
				break
			}
		}
	} else if _, taken := g.edgeIndex[edge.ID]; taken {
		return "", fmt.Errorf("%w: edge %s", ErrDuplicateID, edge.ID)
	}

	if edge.Metadata == nil {
		edge.Metadata = make(map[string]interface{})
	}
	g.edgeIndex[edge.ID] = len(g.edges)
	g.edges = append(g.edges, edge)
	g.touch()
	return edge.ID, nil
}

// RemoveEdge removes a single edge.
func (g *Graph) RemoveEdge(id string) error {
	pos, exists := g.edgeIndex[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownEdge, id)
	}
	g.edges = append(g.edges[:pos], g.edges[pos+1:]...)
	g.reindexEdges()
	g.touch()
	return nil
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[string]int, len(g.edges))
	for i, edge := range g.edges {
		g.edgeIndex[edge.ID] = i
	}
}

func (g *Graph) touch() {
	g.stale = true
	g.revision++
}

// Revision increases on every structural mutation.
func (g *Graph) Revision() uint64 {
	return g.revision
}

// Reindex rebuilds the adjacency index now if it is stale. After Reindex
// returns, reads do not write to the graph until the next mutation, which
// makes a reindexed graph safe to share between readers.
func (g *Graph) Reindex() {
	if !g.stale {
		return
	}

	g.adjacency = make(map[string][]int, len(g.nodes))
	for i, edge := range g.edges {
		g.adjacency[edge.Source] = append(g.adjacency[edge.Source], i)
		if !edge.IsLoop() {
			g.adjacency[edge.Target] = append(g.adjacency[edge.Target], i)
		}
	}
	for _, node := range g.nodes {
		node.Degree = len(g.adjacency[node.ID])
	}
	g.stale = false
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	pos, exists := g.nodeIndex[id]
	if !exists {
		return nil, false
	}
	return g.nodes[pos], true
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id string) bool {
	_, exists := g.nodeIndex[id]
	return exists
}

// Order returns the insertion position of a node, used to break ties.
func (g *Graph) Order(id string) (int, bool) {
	pos, exists := g.nodeIndex[id]
	return pos, exists
}

// NodeAt returns the node at insertion position i.
func (g *Graph) NodeAt(i int) *Node {
	return g.nodes[i]
}

// Edge returns an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	pos, exists := g.edgeIndex[id]
	if !exists {
		return nil, false
	}
	return g.edges[pos], true
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.Reindex()
	nodes := make([]*Node, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

func (g *Graph) mustHave(id string) {
	if _, exists := g.nodeIndex[id]; !exists {
		panic(fmt.Sprintf("model: node %q is not part of the graph", id))
	}
}

// IncidentEdges returns every edge touching the node, self-loops once.
// It panics if the node is not part of the graph.
func (g *Graph) IncidentEdges(id string) []*Edge {
	g.mustHave(id)
	g.Reindex()

	indices := g.adjacency[id]
	edges := make([]*Edge, 0, len(indices))
	for _, i := range indices {
		edges = append(edges, g.edges[i])
	}
	return edges
}

// Neighbors returns the distinct nodes reachable over one edge in the given
// direction, in the order their edges were added. Undirected edges count in
// every direction. A self-loop does not make a node its own neighbour.
// It panics if the node is not part of the graph.
func (g *Graph) Neighbors(id string, dir Direction) []string {
	g.mustHave(id)
	g.Reindex()

	indices := g.adjacency[id]
	seen := make(map[string]bool, len(indices))
	neighbors := make([]string, 0, len(indices))
	for _, i := range indices {
		edge := g.edges[i]
		if edge.IsLoop() || !edge.follows(id, dir) {
			continue
		}
		other := edge.Other(id)
		if !seen[other] {
			seen[other] = true
			neighbors = append(neighbors, other)
		}
	}
	return neighbors
}

// Degree returns the number of edges incident to the node.
// It panics if the node is not part of the graph.
func (g *Graph) Degree(id string) int {
	g.mustHave(id)
	g.Reindex()
	return len(g.adjacency[id])
}

// UniformWeights reports whether every edge carries the same weight.
func (g *Graph) UniformWeights() bool {
	for _, edge := range g.edges {
		if edge.Weight != g.edges[0].Weight {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the graph. Metadata maps are copied shallowly.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for _, node := range g.nodes {
		n := *node
		n.Metadata = copyMetadata(node.Metadata)
		c.nodeIndex[n.ID] = len(c.nodes)
		c.nodes = append(c.nodes, &n)
	}
	for _, edge := range g.edges {
		e := *edge
		e.Metadata = copyMetadata(edge.Metadata)
		c.edgeIndex[e.ID] = len(c.edges)
		c.edges = append(c.edges, &e)
	}
	c.nextEdge = g.nextEdge
	c.revision = g.revision
	c.stale = true
	c.Reindex()
	return c
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
