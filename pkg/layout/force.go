package layout

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ritzau/relgraph/pkg/logging"
	"github.com/ritzau/relgraph/pkg/model"
)

// body adapts a node to barneshut.Particle2. Every node has unit mass.
type body struct {
	node  *model.Node
	index int
}

func (b *body) Coord2() r2.Vec { return b.node.Position }
func (b *body) Mass() float64 { return 1 }

// normalize returns the unit vector of v, or the zero vector for zero input.
func normalize(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// goldenAngle spreads separation directions evenly around the circle.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// separation returns the direction node i is pushed away from node j when
// both sit on the same point. It depends only on the two indices, and the
// result for (j, i) is the opposite of (i, j).
func separation(i, j int) r2.Vec {
	lo, hi := min(i, j), max(i, j)
	angle := float64(lo*31+hi+1) * goldenAngle
	dir := r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
	if i != lo {
		return r2.Scale(-1, dir)
	}
	return dir
}

// repulsion returns the force pushing a node at a away from a mass at b.
// Coincident points have no direction of their own and use fallback.
func (e *Engine) repulsion(a, b r2.Vec, mass float64, fallback r2.Vec) r2.Vec {
	d := r2.Sub(a, b)
	dir := normalize(d)
	if dir == (r2.Vec{}) {
		dir = fallback
	}
	dist := math.Max(r2.Norm(d), e.opts.Epsilon)
	return r2.Scale(mass*e.opts.Repulsion/(dist*dist), dir)
}

// scatter places every unplaced node uniformly in a disc around the origin.
func (e *Engine) scatter(nodes []*model.Node) {
	rng := rand.New(rand.NewPCG(e.opts.Seed, e.opts.Seed^0x9e3779b97f4a7c15))
	for _, n := range nodes {
		if n.Placed {
			continue
		}
		r := e.opts.InitialRadius * math.Sqrt(rng.Float64())
		theta := 2 * math.Pi * rng.Float64()
		place(n, r*math.Cos(theta), r*math.Sin(theta))
	}
}

func (e *Engine) forceDirected(ctx context.Context, g *model.Graph, res *Result) error {
	nodes := g.Nodes()
	edges := g.Edges()
	e.scatter(nodes)

	bodies := make([]barneshut.Particle2, len(nodes))
	for i, n := range nodes {
		bodies[i] = &body{node: n, index: i}
	}
	defer func() {
		for _, n := range nodes {
			n.Velocity = r2.Vec{}
		}
	}()

	res.Energy = make([]float64, 0, e.opts.Iterations)
	for pass := 0; pass < e.opts.Iterations; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, n := range nodes {
			n.Velocity = r2.Vec{}
		}

		if e.opts.Theta > 0 {
			e.repelBarnesHut(nodes, bodies)
		} else {
			e.repelPairs(nodes)
		}

		for _, edge := range edges {
			if edge.IsLoop() {
				continue
			}
			src, _ := g.Node(edge.Source)
			dst, _ := g.Node(edge.Target)
			f := r2.Scale(e.opts.Attraction, r2.Sub(dst.Position, src.Position))
			src.Velocity = r2.Add(src.Velocity, f)
			dst.Velocity = r2.Sub(dst.Velocity, f)
		}

		energy := 0.0
		for _, n := range nodes {
			energy += r2.Norm2(n.Velocity) / 2
			n.Position = r2.Add(n.Position, r2.Scale(e.opts.TimeStep, n.Velocity))
			n.Velocity = r2.Scale(e.opts.Damping, n.Velocity)
		}
		res.Energy = append(res.Energy, energy)
		res.Passes = pass + 1

		if e.opts.EnergyThreshold > 0 && energy < e.opts.EnergyThreshold {
			res.Converged = true
			break
		}
	}

	logging.Debug("force layout finished", "nodes", len(nodes), "passes", res.Passes, "converged", res.Converged)
	return nil
}

// repelPairs applies repulsion to every unordered pair, equal and opposite.
func (e *Engine) repelPairs(nodes []*model.Node) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			f := e.repulsion(nodes[i].Position, nodes[j].Position, 1, separation(i, j))
			nodes[i].Velocity = r2.Add(nodes[i].Velocity, f)
			nodes[j].Velocity = r2.Sub(nodes[j].Velocity, f)
		}
	}
}

// repelBarnesHut approximates repulsion with a quadtree. Positions the tree
// cannot separate fall back to the exact pair loop for this pass.
func (e *Engine) repelBarnesHut(nodes []*model.Node, bodies []barneshut.Particle2) {
	plane, err := barneshut.NewPlane(bodies)
	if err != nil {
		logging.Debug("barnes-hut unavailable, using pair loop", "error", err)
		e.repelPairs(nodes)
		return
	}

	// v points from p1 to the (aggregate) mass p2, so repulsion acts along -v.
	// A nil p2 is an aggregate and has no index to separate from.
	force := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p1 == p2 {
			return r2.Vec{}
		}
		var fallback r2.Vec
		if b2, ok := p2.(*body); ok {
			fallback = separation(p1.(*body).index, b2.index)
		}
		return e.repulsion(r2.Vec{}, v, m2, fallback)
	}
	for i, n := range nodes {
		n.Velocity = r2.Add(n.Velocity, plane.ForceOn(bodies[i], e.opts.Theta, force))
	}
}
