package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/network"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	r := &history.Report{
		Source:   "world.json",
		Revision: 4,
		Warnings: 1,
		Metrics: &network.Metrics{
			NodeCount:     5,
			EdgeCount:     4,
			Components:    1,
			Density:       0.2,
			Centrality:    map[string]int{"M": 4, "A": 1},
			MostCentral:   []string{"M", "A"},
			BridgeNodes:   []string{"M"},
			MostConnected: "M",
		},
		Clusters: &clusters.Partition{
			Method:   clusters.Components,
			Clusters: []clusters.Cluster{{ID: 0, Description: "5 entities, 4 relationships, hub M", Cohesion: 0.4}},
		},
	}

	var buf bytes.Buffer
	PrintReport(&buf, r)
	out := buf.String()

	for _, want := range []string{
		"Source: world.json",
		"Warnings: 1 record(s) skipped",
		"Entities: 5",
		" 1. M (4)",
		"BRIDGE ENTITIES:",
		"#0 5 entities, 4 relationships, hub M, cohesion 0.40",
		"Summary: 1 component(s), 1 bridge entit(ies)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportHealthy(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, &history.Report{Metrics: &network.Metrics{NodeCount: 3, Components: 1}})
	if !strings.Contains(buf.String(), "no single points of failure") {
		t.Errorf("Expected healthy summary, got:\n%s", buf.String())
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("Expected empty marker, got %q", buf.String())
	}

	buf.Reset()
	PrintHistory(&buf, []*history.Report{{
		ID:        "0123456789abcdef",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Revision:  9,
		Metrics:   &network.Metrics{NodeCount: 2, EdgeCount: 1},
	}})
	if !strings.Contains(buf.String(), "2026-03-01 12:00:00  01234567  rev 9  2 entities, 1 relationships") {
		t.Errorf("Unexpected history line: %q", buf.String())
	}
}

func TestList(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	if got := list(ids); !strings.HasSuffix(got, "and 2 more") {
		t.Errorf("Expected truncation, got %q", got)
	}
}
