// Package network computes structural metrics over a relationship graph:
// density, degree and betweenness centrality, clustering, path lengths and
// the articulation points that hold it together.
package network

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/relgraph/pkg/model"
)

var tracer = otel.Tracer("relgraph/network")

// DefaultTopK is the length of the most-central list.
const DefaultTopK = 10

// Metrics is an immutable analysis snapshot. Slices and maps are never nil.
type Metrics struct {
	NodeCount             int     `json:"nodeCount"`
	EdgeCount             int     `json:"edgeCount"`
	Density               float64 `json:"density"`
	AveragePathLength     float64 `json:"averagePathLength"`
	ClusteringCoefficient float64 `json:"clusteringCoefficient"`
	AverageDegree         float64 `json:"averageDegree"`

	Centrality    map[string]int `json:"centrality"` // incident non-loop edges
	MostCentral   []string       `json:"mostCentral"`
	BridgeNodes   []string       `json:"bridgeNodes"`
	IsolatedNodes []string       `json:"isolatedNodes"`

	BridgeEdges    []string           `json:"bridgeEdges"`
	Components     int                `json:"components"`
	Cycles         [][]string         `json:"cycles"` // directed strongly connected groups
	Betweenness    map[string]float64 `json:"betweenness"`
	MostConnected  string             `json:"mostConnected,omitempty"`
	LeastConnected string             `json:"leastConnected,omitempty"`

	Revision   uint64        `json:"revision"`
	ComputedAt time.Time     `json:"computedAt"`
	Duration   time.Duration `json:"duration"`
}

func newMetrics() *Metrics {
	return &Metrics{
		Centrality:    make(map[string]int),
		MostCentral:   make([]string, 0),
		BridgeNodes:   make([]string, 0),
		IsolatedNodes: make([]string, 0),
		BridgeEdges:   make([]string, 0),
		Cycles:        make([][]string, 0),
		Betweenness:   make(map[string]float64),
	}
}

// Analyzer computes Metrics. The zero value uses DefaultTopK.
type Analyzer struct {
	TopK int
	// SkipBetweenness disables the O(nm) betweenness pass.
	SkipBetweenness bool
}

// Analyze computes every metric over g. It reads the adjacency index only.
// On cancellation the fields computed so far are returned with ctx.Err().
func (a Analyzer) Analyze(ctx context.Context, g *model.Graph) (*Metrics, error) {
	ctx, span := tracer.Start(ctx, "network.Analyze", trace.WithAttributes(
		attribute.Int("nodes", g.NodeCount()),
		attribute.Int("edges", g.EdgeCount()),
	))
	defer span.End()

	start := time.Now()
	m := newMetrics()
	m.ComputedAt = start
	m.Revision = g.Revision()
	defer func() { m.Duration = time.Since(start) }()

	g.Reindex()
	m.NodeCount = g.NodeCount()
	m.EdgeCount = g.EdgeCount()
	if m.NodeCount == 0 {
		span.AddEvent("empty_graph")
		return m, nil
	}

	nodes := g.Nodes()
	m.Density = density(g, nodes)
	a.centrality(g, nodes, m)
	m.ClusteringCoefficient = clustering(g, nodes)
	m.Cycles = cycles(g, nodes)

	c, err := articulation(ctx, g)
	m.BridgeNodes, m.BridgeEdges, m.Components = c.points, c.bridges, c.components
	if err != nil {
		span.AddEvent("context_cancelled")
		return m, err
	}

	if m.AveragePathLength, err = averagePathLength(ctx, g, nodes); err != nil {
		span.AddEvent("context_cancelled")
		return m, err
	}

	if !a.SkipBetweenness {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		for id, score := range network.Betweenness(g.WeightedView()) {
			m.Betweenness[g.NodeAt(int(id)).ID] = score
		}
		for _, n := range nodes {
			if _, ok := m.Betweenness[n.ID]; !ok {
				m.Betweenness[n.ID] = 0
			}
		}
	}

	span.SetAttributes(
		attribute.Int("bridge_nodes", len(m.BridgeNodes)),
		attribute.Int("components", m.Components),
	)
	return m, nil
}

// density is the fraction of ordered node pairs linked by an edge. An
// undirected edge links both orders; self-loops and parallel edges add
// nothing.
func density(g *model.Graph, nodes []*model.Node) float64 {
	n := len(nodes)
	if n <= 1 {
		return 0
	}
	linked := 0
	for _, node := range nodes {
		linked += len(g.Neighbors(node.ID, model.Out))
	}
	return float64(linked) / float64(n*(n-1))
}

func (a Analyzer) centrality(g *model.Graph, nodes []*model.Node, m *Metrics) {
	degrees := make([]float64, len(nodes))
	for i, node := range nodes {
		score := 0
		for _, e := range g.IncidentEdges(node.ID) {
			if !e.IsLoop() {
				score++
			}
		}
		m.Centrality[node.ID] = score
		degrees[i] = float64(score)
		if score == 0 {
			m.IsolatedNodes = append(m.IsolatedNodes, node.ID)
		}
	}
	m.AverageDegree = stat.Mean(degrees, nil)

	// Stable sort keeps insertion order between equal scores.
	ranked := make([]string, len(nodes))
	for i, node := range nodes {
		ranked[i] = node.ID
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return m.Centrality[ranked[i]] > m.Centrality[ranked[j]]
	})

	k := a.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	m.MostCentral = append(m.MostCentral, ranked[:k]...)
	m.MostConnected = ranked[0]

	least := nodes[0].ID
	for _, node := range nodes[1:] {
		if m.Centrality[node.ID] < m.Centrality[least] {
			least = node.ID
		}
	}
	m.LeastConnected = least
}

// clustering averages the local coefficient over nodes with at least two
// distinct neighbours, ignoring direction.
func clustering(g *model.Graph, nodes []*model.Node) float64 {
	adjacent := make(map[string]map[string]bool, len(nodes))
	for _, node := range nodes {
		set := make(map[string]bool)
		for _, nb := range g.Neighbors(node.ID, model.Both) {
			set[nb] = true
		}
		adjacent[node.ID] = set
	}

	local := make([]float64, 0, len(nodes))
	for _, node := range nodes {
		nbs := g.Neighbors(node.ID, model.Both)
		k := len(nbs)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if adjacent[nbs[i]][nbs[j]] {
					links++
				}
			}
		}
		local = append(local, float64(links)/float64(k*(k-1)/2))
	}
	if len(local) == 0 {
		return 0
	}
	return stat.Mean(local, nil)
}

// averagePathLength runs a BFS along edge direction from every node and
// averages the hop distance over reachable ordered pairs.
func averagePathLength(ctx context.Context, g *model.Graph, nodes []*model.Node) (float64, error) {
	total, pairs := 0, 0
	dist := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))

	for i, src := range nodes {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		clear(dist)
		queue = append(queue[:0], src.ID)
		dist[src.ID] = 0
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range g.Neighbors(u, model.Out) {
				if _, seen := dist[v]; seen {
					continue
				}
				dist[v] = dist[u] + 1
				total += dist[v]
				pairs++
				queue = append(queue, v)
			}
		}
	}
	if pairs == 0 {
		return 0, nil
	}
	return float64(total) / float64(pairs), nil
}
