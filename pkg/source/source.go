// Package source defines the read-only entity/relationship surface the graph
// builder consumes, with file-backed and in-memory implementations.
package source

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Entity is one record from the entity database.
type Entity struct {
	ID          string                 `json:"id" yaml:"id" toml:"id" validate:"required"`
	DisplayName string                 `json:"displayName,omitempty" yaml:"displayName,omitempty" toml:"displayName,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// Relationship is one typed link between two entities. Weight and Directed
// are optional; builders default them to 1.0 and true.
type Relationship struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	SourceID string   `json:"sourceId" yaml:"sourceId" toml:"sourceId" validate:"required"`
	TargetID string   `json:"targetId" yaml:"targetId" toml:"targetId" validate:"required"`
	Type     string   `json:"type" yaml:"type" toml:"type"`
	Weight   *float64 `json:"weight,omitempty" yaml:"weight,omitempty" toml:"weight,omitempty" validate:"omitempty,gte=0"`
	Directed *bool    `json:"directed,omitempty" yaml:"directed,omitempty" toml:"directed,omitempty"`
}

// Snapshot is a point-in-time copy of the entity and relationship stores.
type Snapshot struct {
	Entities      []Entity       `json:"entities" yaml:"entities" toml:"entities" validate:"dive"`
	Relationships []Relationship `json:"relationships" yaml:"relationships" toml:"relationships"`
}

// Source represents a provider of entity/relationship snapshots.
type Source interface {
	// Name returns a short human readable name for logs (e.g. a file path).
	Name() string

	// Load returns a snapshot. It should respect the context for cancellation.
	Load(ctx context.Context) (*Snapshot, error)
}

var validate = validator.New()

// Validate checks the structural constraints of a snapshot: every entity
// has an id. Relationships are checked one at a time by the builder so a bad
// record only drops itself.
func Validate(s *Snapshot) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return nil
}

// ValidateRelationship checks that a relationship names both endpoints and
// carries a non-negative weight.
func ValidateRelationship(r Relationship) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid relationship %s -> %s: %w", r.SourceID, r.TargetID, err)
	}
	return nil
}

// MemorySource serves a fixed snapshot.
type MemorySource struct {
	name     string
	snapshot *Snapshot
}

// NewMemorySource creates a source that always returns snapshot.
func NewMemorySource(name string, snapshot *Snapshot) *MemorySource {
	return &MemorySource{name: name, snapshot: snapshot}
}

func (s *MemorySource) Name() string {
	return s.name
}

func (s *MemorySource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Validate(s.snapshot); err != nil {
		return nil, err
	}
	return s.snapshot, nil
}

// Float and Bool return pointers for the optional relationship fields.
func Float(v float64) *float64 { return &v }
func Bool(v bool) *bool { return &v }
