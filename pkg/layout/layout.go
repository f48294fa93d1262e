// Package layout assigns 2D positions to graph nodes. Every strategy writes
// Position, clears Velocity and marks the node Placed.
package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ritzau/relgraph/pkg/model"
)

// ErrUnknownStrategy is returned for a strategy name or value the engine
// does not implement.
var ErrUnknownStrategy = errors.New("unknown layout strategy")

// Strategy selects the layout algorithm.
type Strategy string

const (
	ForceDirected Strategy = "force"
	Hierarchical  Strategy = "hierarchical"
	Circular      Strategy = "circular"
	Grid          Strategy = "grid"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{ForceDirected, Hierarchical, Circular, Grid}

// ParseStrategy resolves a strategy name, case-insensitively. "force-directed"
// is accepted as an alias of "force".
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case ForceDirected, "force-directed", "forcedirected":
		return ForceDirected, nil
	case Hierarchical, Circular, Grid:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Options holds the tunables of every strategy.
type Options struct {
	// Force-directed
	Iterations      int     `validate:"gte=1"`
	Repulsion       float64 `validate:"gte=0"`
	Epsilon         float64 `validate:"gt=0"`
	Attraction      float64 `validate:"gte=0"`
	TimeStep        float64 `validate:"gt=0"`
	Damping         float64 `validate:"gte=0,lte=1"`
	InitialRadius   float64 `validate:"gte=0"`
	Seed            uint64
	EnergyThreshold float64 `validate:"gte=0"` // 0 runs every pass
	Theta           float64 `validate:"gte=0"` // > 0 enables Barnes-Hut repulsion

	// Hierarchical
	NodeSpacing  float64 `validate:"gt=0"`
	LayerSpacing float64 `validate:"gt=0"`

	// Circular
	RadiusPerNode float64 `validate:"gt=0"`

	// Grid
	CellSize float64 `validate:"gt=0"`
}

// DefaultOptions returns the tuning the editor shipped with.
func DefaultOptions() Options {
	return Options{
		Iterations:    100,
		Repulsion:     1000,
		Epsilon:       0.1,
		Attraction:    0.01,
		TimeStep:      0.1,
		Damping:       0.9,
		InitialRadius: 200,
		Seed:          1,
		NodeSpacing:   80,
		LayerSpacing:  100,
		RadiusPerNode: 10,
		CellSize:      80,
	}
}

// Result describes one layout run.
type Result struct {
	Strategy  Strategy      `json:"strategy"`
	Nodes     int           `json:"nodes"`
	Passes    int           `json:"passes"`
	Energy    []float64     `json:"energy,omitempty"` // kinetic energy per force-directed pass
	Converged bool          `json:"converged"`
	Duration  time.Duration `json:"duration"`
}

// Engine runs layout strategies over a graph it is handed.
type Engine struct {
	opts Options
}

var validate = validator.New()

// NewEngine validates opts and returns an engine using them.
func NewEngine(opts Options) (*Engine, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid layout options: %w", err)
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine's settings.
func (e *Engine) Options() Options {
	return e.opts
}

// Apply lays out g with the given strategy. Positions are written in place.
// A cancelled force-directed run keeps the positions of the last completed
// pass and returns the context error alongside the partial result.
func (e *Engine) Apply(ctx context.Context, g *model.Graph, strategy Strategy) (*Result, error) {
	ctx, span := otel.Tracer("relgraph/layout").Start(ctx, "layout.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.Int("nodes", g.NodeCount()),
		attribute.Int("edges", g.EdgeCount()),
	)

	start := time.Now()
	res := &Result{Strategy: strategy, Nodes: g.NodeCount()}

	var err error
	switch strategy {
	case ForceDirected:
		err = e.forceDirected(ctx, g, res)
	case Hierarchical:
		e.hierarchical(g)
		res.Passes = 1
	case Circular:
		e.circular(g)
		res.Passes = 1
	case Grid:
		e.grid(g)
		res.Passes = 1
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	res.Duration = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrUnknownStrategy) {
			return nil, err
		}
		return res, err
	}
	span.SetAttributes(attribute.Int("passes", res.Passes))
	return res, nil
}

func place(n *model.Node, x, y float64) {
	n.Position.X = x
	n.Position.Y = y
	n.Velocity.X = 0
	n.Velocity.Y = 0
	n.Placed = true
}
