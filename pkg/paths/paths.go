// Package paths finds routes between entities: a single shortest path and
// a bounded enumeration of every simple path.
package paths

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/path"

	"github.com/ritzau/relgraph/pkg/model"
)

var (
	// ErrNoPath is returned when the target cannot be reached.
	ErrNoPath = errors.New("no path")
	// ErrDepthExceeded is returned for a depth bound that is not positive
	// or above the finder's limit.
	ErrDepthExceeded = errors.New("depth exceeds limit")
)

const (
	DefaultMaxDepthLimit = 10
	DefaultMaxPaths      = 1000
)

// Path is an ordered node sequence. Cost sums edge weights, taking the
// cheapest of parallel edges.
type Path struct {
	Nodes []string `json:"nodes"`
	Cost  float64  `json:"cost"`
}

// Hops returns the number of edges on the path.
func (p Path) Hops() int {
	return len(p.Nodes) - 1
}

// Enumeration is the result of All.
type Enumeration struct {
	Paths []Path `json:"paths"`
	// Truncated is set when the depth bound or the path cap pruned the
	// search, so longer or further paths may exist.
	Truncated bool `json:"truncated"`
}

// Finder walks edges in their direction; undirected edges go both ways.
// The zero value uses the default limits.
type Finder struct {
	MaxDepthLimit int
	MaxPaths      int
}

func (f Finder) depthLimit() int {
	if f.MaxDepthLimit <= 0 {
		return DefaultMaxDepthLimit
	}
	return f.MaxDepthLimit
}

func (f Finder) pathCap() int {
	if f.MaxPaths <= 0 {
		return DefaultMaxPaths
	}
	return f.MaxPaths
}

func checkEndpoints(g *model.Graph, from, to string) error {
	if !g.HasNode(from) {
		return fmt.Errorf("%w: %s", model.ErrUnknownNode, from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("%w: %s", model.ErrUnknownNode, to)
	}
	return nil
}

// Shortest returns a minimum cost path from one node to another. Uniform
// weights use BFS (fewest hops); mixed weights use Dijkstra.
func (f Finder) Shortest(g *model.Graph, from, to string) (*Path, error) {
	if err := checkEndpoints(g, from, to); err != nil {
		return nil, err
	}
	if from == to {
		return &Path{Nodes: []string{from}}, nil
	}
	if g.UniformWeights() {
		return bfs(g, from, to)
	}
	return dijkstra(g, from, to)
}

func bfs(g *model.Graph, from, to string) (*Path, error) {
	parent := map[string]string{from: ""}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(current, model.Out) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == to {
				return reconstruct(g, parent, from, to), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
}

func reconstruct(g *model.Graph, parent map[string]string, from, to string) *Path {
	nodes := []string{to}
	for n := to; n != from; {
		n = parent[n]
		nodes = append(nodes, n)
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return &Path{Nodes: nodes, Cost: cost(g, nodes)}
}

func dijkstra(g *model.Graph, from, to string) (*Path, error) {
	view := g.WeightedView()
	src, _ := g.Order(from)
	dst, _ := g.Order(to)

	tree := path.DijkstraFrom(view.Node(int64(src)), view)
	route, weight := tree.To(int64(dst))
	if len(route) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
	}

	nodes := make([]string, len(route))
	for i, n := range route {
		nodes[i] = g.NodeAt(int(n.ID())).ID
	}
	return &Path{Nodes: nodes, Cost: weight}, nil
}

// cost sums the cheapest usable edge between consecutive nodes.
func cost(g *model.Graph, nodes []string) float64 {
	total := 0.0
	for i := 0; i+1 < len(nodes); i++ {
		best := -1.0
		for _, e := range g.IncidentEdges(nodes[i]) {
			if e.IsLoop() || e.Other(nodes[i]) != nodes[i+1] {
				continue
			}
			if e.Source != nodes[i] && e.Directed {
				continue
			}
			if best < 0 || e.Weight < best {
				best = e.Weight
			}
		}
		total += best
	}
	return total
}

// All enumerates simple paths of at most maxDepth hops, depth first in
// edge insertion order.
func (f Finder) All(ctx context.Context, g *model.Graph, from, to string, maxDepth int) (*Enumeration, error) {
	if maxDepth <= 0 || maxDepth > f.depthLimit() {
		return nil, fmt.Errorf("%w: %d (limit %d)", ErrDepthExceeded, maxDepth, f.depthLimit())
	}
	if err := checkEndpoints(g, from, to); err != nil {
		return nil, err
	}

	res := &Enumeration{Paths: make([]Path, 0)}
	if from == to {
		res.Paths = append(res.Paths, Path{Nodes: []string{from}})
		return res, nil
	}

	w := walker{
		g:        g,
		to:       to,
		maxDepth: maxDepth,
		cap:      f.pathCap(),
		onPath:   map[string]bool{from: true},
		stack:    []string{from},
		res:      res,
	}
	if err := w.walk(ctx, from); err != nil {
		return res, err
	}
	return res, nil
}

type walker struct {
	g        *model.Graph
	to       string
	maxDepth int
	cap      int
	onPath   map[string]bool
	stack    []string
	steps    int
	res      *Enumeration
}

var errCapReached = errors.New("path cap reached")

func (w *walker) walk(ctx context.Context, u string) error {
	err := w.visit(ctx, u)
	if errors.Is(err, errCapReached) {
		return nil
	}
	return err
}

func (w *walker) visit(ctx context.Context, u string) error {
	w.steps++
	if w.steps%1024 == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	depth := len(w.stack) - 1
	for _, v := range w.g.Neighbors(u, model.Out) {
		if w.onPath[v] {
			continue
		}
		if v == w.to {
			nodes := make([]string, len(w.stack)+1)
			copy(nodes, w.stack)
			nodes[len(w.stack)] = v
			w.res.Paths = append(w.res.Paths, Path{Nodes: nodes, Cost: cost(w.g, nodes)})
			if len(w.res.Paths) >= w.cap {
				w.res.Truncated = true
				return errCapReached
			}
			continue
		}
		if depth+1 >= w.maxDepth {
			// Extending through v would need more than maxDepth hops.
			w.res.Truncated = true
			continue
		}
		w.onPath[v] = true
		w.stack = append(w.stack, v)
		err := w.visit(ctx, v)
		w.stack = w.stack[:len(w.stack)-1]
		delete(w.onPath, v)
		if err != nil {
			return err
		}
	}
	return nil
}
