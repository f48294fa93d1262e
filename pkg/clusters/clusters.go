// Package clusters partitions a relationship graph into groups of closely
// linked entities. Every node ends up in exactly one cluster.
package clusters

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/relgraph/pkg/model"
)

// ErrUnknownMethod is returned for an unsupported detection method.
var ErrUnknownMethod = errors.New("unknown cluster method")

// Method selects the partitioning algorithm.
type Method string

const (
	// Components groups nodes by connectivity, ignoring direction.
	Components Method = "components"
	// Modularity runs Louvain modularity optimisation.
	Modularity Method = "modularity"
)

// ParseMethod resolves a method name.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case Components, Modularity:
		return m, nil
	case "":
		return Components, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// Cluster is one group of entities.
type Cluster struct {
	ID          int      `json:"id"`
	Members     []string `json:"members"` // insertion order
	Cohesion    float64  `json:"cohesion"`
	Centroid    r2.Vec   `json:"centroid"`
	Hub         string   `json:"hub"`
	Edges       int      `json:"edges"`
	Description string   `json:"description"`
}

// Partition is the full replacement cluster list of one detection run.
type Partition struct {
	Method     Method    `json:"method"`
	Clusters   []Cluster `json:"clusters"`
	Modularity float64   `json:"modularity"`
	Revision   uint64    `json:"revision"`
}

// Detector finds clusters. The zero value detects connected components.
type Detector struct {
	Method Method
	// Resolution scales the modularity null model; 0 means 1.
	Resolution float64
	Seed       uint64
}

// Detect partitions g. Clusters are ordered by size, largest first, then by
// the insertion order of their first member, and numbered from 0.
func (d Detector) Detect(ctx context.Context, g *model.Graph) (*Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method := d.Method
	if method == "" {
		method = Components
	}
	resolution := d.Resolution
	if resolution <= 0 {
		resolution = 1
	}
	if g.NodeCount() == 0 {
		return &Partition{Method: method, Clusters: make([]Cluster, 0), Revision: g.Revision()}, nil
	}

	view := g.UndirectedView()
	var groups [][]graph.Node
	switch method {
	case Components:
		groups = topo.ConnectedComponents(view)
	case Modularity:
		if view.Edges().Len() == 0 {
			// Without edges every node is its own community.
			groups = topo.ConnectedComponents(view)
			break
		}
		src := rand.NewPCG(d.Seed, d.Seed^0x5deece66d)
		groups = community.Modularize(view, resolution, src).Communities()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	members := make([][]int, 0, len(groups))
	for _, group := range groups {
		idx := make([]int, len(group))
		for i, n := range group {
			idx[i] = int(n.ID())
		}
		sort.Ints(idx)
		members = append(members, idx)
	}
	sort.SliceStable(members, func(i, j int) bool {
		if len(members[i]) != len(members[j]) {
			return len(members[i]) > len(members[j])
		}
		return members[i][0] < members[j][0]
	})

	p := &Partition{Method: method, Clusters: make([]Cluster, 0, len(members)), Revision: g.Revision()}
	for id, idx := range members {
		p.Clusters = append(p.Clusters, describe(g, id, idx))
	}
	if view.Edges().Len() > 0 {
		if q := community.Q(view, groups, resolution); !math.IsNaN(q) {
			p.Modularity = q
		}
	}
	return p, nil
}

func describe(g *model.Graph, id int, idx []int) Cluster {
	c := Cluster{ID: id, Members: make([]string, len(idx))}
	inside := make(map[string]bool, len(idx))
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, pos := range idx {
		n := g.NodeAt(pos)
		c.Members[i] = n.ID
		inside[n.ID] = true
		xs[i], ys[i] = n.Position.X, n.Position.Y
	}
	c.Centroid = r2.Vec{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	hubDegree := -1
	linked := 0
	for _, m := range c.Members {
		internal := 0
		for _, nb := range g.Neighbors(m, model.Both) {
			if inside[nb] {
				internal++
			}
		}
		linked += internal
		if internal > hubDegree {
			c.Hub, hubDegree = m, internal
		}
		for _, e := range g.IncidentEdges(m) {
			// Count each internal edge once, from its source.
			if e.Source == m && inside[e.Target] {
				c.Edges++
			}
		}
	}

	k := len(c.Members)
	if k > 1 {
		// Each linked unordered pair was counted from both ends.
		c.Cohesion = float64(linked/2) / float64(k*(k-1)/2)
	}
	c.Description = fmt.Sprintf("%d entities, %d relationships, hub %s", k, c.Edges, c.Hub)
	return c
}
