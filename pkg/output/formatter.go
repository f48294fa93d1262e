package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/relgraph/pkg/history"
)

// maxListed caps the entity lists printed per section.
const maxListed = 10

// PrintReport prints a nicely formatted analysis report with colors
func PrintReport(w io.Writer, r *history.Report) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "relgraph - Network Analysis Report")
	bold.Fprintln(w, "==================================")
	if r.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(w, "Revision: %d\n", r.Revision)
	if r.Warnings > 0 {
		yellow.Fprintf(w, "Warnings: %d record(s) skipped\n", r.Warnings)
	}
	fmt.Fprintln(w)

	if m := r.Metrics; m != nil {
		bold.Fprintln(w, "NETWORK:")
		fmt.Fprintf(w, "  Entities: %d\n", m.NodeCount)
		fmt.Fprintf(w, "  Relationships: %d\n", m.EdgeCount)
		fmt.Fprintf(w, "  Components: %d\n", m.Components)
		fmt.Fprintf(w, "  Density: %.4f\n", m.Density)
		fmt.Fprintf(w, "  Average degree: %.2f\n", m.AverageDegree)
		fmt.Fprintf(w, "  Average path length: %.2f\n", m.AveragePathLength)
		fmt.Fprintf(w, "  Clustering coefficient: %.4f\n", m.ClusteringCoefficient)
		if m.MostConnected != "" {
			cyan.Fprintf(w, "  Most connected: %s\n", m.MostConnected)
			cyan.Fprintf(w, "  Least connected: %s\n", m.LeastConnected)
		}
		fmt.Fprintln(w)

		if len(m.MostCentral) > 0 {
			bold.Fprintln(w, "MOST CENTRAL:")
			for i, id := range m.MostCentral {
				fmt.Fprintf(w, "  %2d. %s (%d)\n", i+1, id, m.Centrality[id])
			}
			fmt.Fprintln(w)
		}

		if len(m.BridgeNodes) > 0 {
			red.Fprintln(w, "BRIDGE ENTITIES:")
			yellow.Fprintf(w, "  %s\n", list(m.BridgeNodes))
			fmt.Fprintln(w)
		}
		if len(m.Cycles) > 0 {
			yellow.Fprintf(w, "CYCLES (%d):\n", len(m.Cycles))
			for _, cycle := range m.Cycles {
				fmt.Fprintf(w, "  %s\n", list(cycle))
			}
			fmt.Fprintln(w)
		}
		if len(m.IsolatedNodes) > 0 {
			yellow.Fprintln(w, "ISOLATED ENTITIES:")
			fmt.Fprintf(w, "  %s\n", list(m.IsolatedNodes))
			fmt.Fprintln(w)
		}
	}

	if p := r.Clusters; p != nil {
		bold.Fprintf(w, "CLUSTERS (%s):\n", p.Method)
		for _, c := range p.Clusters {
			cyan.Fprintf(w, "  #%d ", c.ID)
			fmt.Fprintf(w, "%s, cohesion %.2f\n", c.Description, c.Cohesion)
		}
		if p.Modularity != 0 {
			fmt.Fprintf(w, "  Modularity: %.4f\n", p.Modularity)
		}
		fmt.Fprintln(w)
	}

	if l := r.Layout; l != nil {
		fmt.Fprintf(w, "Layout: %s, %d pass(es) in %s", l.Strategy, l.Passes, l.Duration)
		if l.Converged {
			green.Fprint(w, " (converged)")
		}
		fmt.Fprintln(w)
	}

	// Summary
	if m := r.Metrics; m != nil {
		switch {
		case m.NodeCount == 0:
			yellow.Fprintln(w, "Summary: empty graph")
		case len(m.BridgeNodes) == 0 && m.Components <= 1:
			green.Fprintln(w, "✓ Graph is connected with no single points of failure")
		default:
			red.Fprintf(w, "Summary: %d component(s), %d bridge entit(ies)\n", m.Components, len(m.BridgeNodes))
		}
	}
}

// PrintHistory prints one line per stored report, newest first.
func PrintHistory(w io.Writer, reports []*history.Report) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Report history")
	if len(reports) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, r := range reports {
		nodes, edges := 0, 0
		if r.Metrics != nil {
			nodes, edges = r.Metrics.NodeCount, r.Metrics.EdgeCount
		}
		fmt.Fprintf(w, "  %s  %s  rev %d  %d entities, %d relationships\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), shortID(r.ID), r.Revision, nodes, edges)
	}
}

func list(ids []string) string {
	if len(ids) <= maxListed {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:maxListed], ", "), len(ids)-maxListed)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
