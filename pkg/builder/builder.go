// Package builder turns an entity/relationship snapshot into a fresh
// model.Graph.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ritzau/relgraph/pkg/logging"
	"github.com/ritzau/relgraph/pkg/model"
	"github.com/ritzau/relgraph/pkg/source"
)

// ErrDuplicateEntity marks an entity id that appeared more than once in a
// snapshot. The first occurrence is kept.
var ErrDuplicateEntity = errors.New("duplicate entity")

// Warning is a record the builder skipped. Err wraps model.ErrInvalidReference
// for dangling relationships and ErrDuplicateEntity for repeated entities.
type Warning struct {
	Index int    // position of the record in its snapshot slice
	Kind  string // "entity" or "relationship"
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s #%d skipped: %v", w.Kind, w.Index, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Result is the outcome of one build.
type Result struct {
	Graph    *model.Graph
	Warnings []Warning
	Source   string
}

// Build loads a snapshot from src and builds a new graph from it. Records
// that cannot be represented are skipped and reported as warnings; only a
// failing source or a cancelled context aborts the build.
func Build(ctx context.Context, src source.Source) (*Result, error) {
	logger := logging.New("builder")

	snapshot, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src.Name(), err)
	}

	g, warnings, err := FromSnapshot(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		logger.WarnContext(ctx, "skipped record", "source", src.Name(), "kind", w.Kind, "index", w.Index, "error", w.Err)
	}
	logger.InfoContext(ctx, "graph built",
		"source", src.Name(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"warnings", len(warnings))

	return &Result{Graph: g, Warnings: warnings, Source: src.Name()}, nil
}

// FromSnapshot builds a graph from an already loaded snapshot. Display names
// become labels; relationship weight defaults to model.DefaultWeight and
// direction to directed.
func FromSnapshot(ctx context.Context, snapshot *source.Snapshot) (*model.Graph, []Warning, error) {
	g := model.NewGraph()
	warnings := make([]Warning, 0)

	for i, entity := range snapshot.Entities {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		node := &model.Node{
			ID:       entity.ID,
			Label:    entity.DisplayName,
			Metadata: copyMetadata(entity.Metadata),
		}
		if err := g.AddNode(node); err != nil {
			if errors.Is(err, model.ErrDuplicateID) {
				err = fmt.Errorf("%w: %s", ErrDuplicateEntity, entity.ID)
			}
			warnings = append(warnings, Warning{Index: i, Kind: "entity", Err: err})
		}
	}

	for i, rel := range snapshot.Relationships {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		if err := source.ValidateRelationship(rel); err != nil {
			warnings = append(warnings, Warning{
				Index: i,
				Kind:  "relationship",
				Err:   fmt.Errorf("%w: %v", model.ErrInvalidReference, err),
			})
			continue
		}
		edge := &model.Edge{
			ID:       rel.ID,
			Source:   rel.SourceID,
			Target:   rel.TargetID,
			Type:     rel.Type,
			Weight:   model.DefaultWeight,
			Directed: true,
		}
		if rel.Weight != nil {
			edge.Weight = *rel.Weight
		}
		if rel.Directed != nil {
			edge.Directed = *rel.Directed
		}
		if _, err := g.AddEdge(edge); err != nil {
			warnings = append(warnings, Warning{Index: i, Kind: "relationship", Err: err})
		}
	}

	g.Reindex()
	return g, warnings, nil
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
