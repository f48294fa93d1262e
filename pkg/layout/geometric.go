package layout

import (
	"math"

	"github.com/ritzau/relgraph/pkg/model"
)

// circular spaces nodes evenly on a circle whose radius grows with n.
func (e *Engine) circular(g *model.Graph) {
	nodes := g.Nodes()
	n := float64(len(nodes))
	radius := n * e.opts.RadiusPerNode
	for i, node := range nodes {
		angle := float64(i) * 2 * math.Pi / n
		place(node, radius*math.Cos(angle), radius*math.Sin(angle))
	}
}

// grid fills a ceil(sqrt(n)) wide grid row by row.
func (e *Engine) grid(g *model.Graph) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return
	}
	side := int(math.Ceil(math.Sqrt(float64(len(nodes)))))
	for i, node := range nodes {
		row, col := i/side, i%side
		place(node, float64(col)*e.opts.CellSize, float64(row)*e.opts.CellSize)
	}
}
