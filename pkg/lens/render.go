package lens

import (
	"github.com/ritzau/relgraph/pkg/model"
)

// GraphNode is a visible node as handed to a rendering client.
type GraphNode struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Placed      bool    `json:"placed"`
	Size        float64 `json:"size"`
	Degree      int     `json:"degree"`
	Cluster     int     `json:"cluster"` // -1 when no partition was supplied
	Selected    bool    `json:"selected,omitempty"`
	Highlighted bool    `json:"highlighted,omitempty"`
}

// GraphEdge is a visible edge with its endpoints.
type GraphEdge struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Type     string  `json:"type"`
	Weight   float64 `json:"weight"`
	Directed bool    `json:"directed"`
}

// GraphData is the render payload of one view.
type GraphData struct {
	Revision uint64      `json:"revision"`
	Nodes    []GraphNode `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
}

// Render resolves the ids of v against g. clusterOf maps node ids to a
// cluster id and may be nil.
func Render(g *model.Graph, v View, clusterOf map[string]int) *GraphData {
	g.Reindex()
	data := &GraphData{
		Revision: g.Revision(),
		Nodes:    make([]GraphNode, 0, len(v.NodeIDs)),
		Edges:    make([]GraphEdge, 0, len(v.EdgeIDs)),
	}

	for _, id := range v.NodeIDs {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		cluster := -1
		if c, ok := clusterOf[id]; ok {
			cluster = c
		}
		data.Nodes = append(data.Nodes, GraphNode{
			ID:          n.ID,
			Label:       n.Label,
			X:           n.Position.X,
			Y:           n.Position.Y,
			Placed:      n.Placed,
			Size:        n.Size(),
			Degree:      n.Degree,
			Cluster:     cluster,
			Selected:    n.Selected,
			Highlighted: n.Highlighted,
		})
	}

	for _, id := range v.EdgeIDs {
		e, ok := g.Edge(id)
		if !ok {
			continue
		}
		data.Edges = append(data.Edges, GraphEdge{
			ID:       e.ID,
			Source:   e.Source,
			Target:   e.Target,
			Type:     e.Type,
			Weight:   e.Weight,
			Directed: e.Directed,
		})
	}
	return data
}
