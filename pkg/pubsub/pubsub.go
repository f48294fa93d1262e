// Package pubsub fans session events out to streaming clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by a session.
const (
	// TopicSessionStatus carries SessionStatus updates.
	TopicSessionStatus = "session_status"
	// TopicGraph carries lens.GraphDiff updates of the default view.
	TopicGraph = "graph"
	// TopicAnalysis carries AnalysisSummary updates.
	TopicAnalysis = "analysis"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g. "building", "ready", "diff"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic, increasing
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation closes the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// SessionStatus reports the progress of a session run.
type SessionStatus struct {
	State    string `json:"state"` // building, layout, analyzing, clustering, ready, failed
	Message  string `json:"message"`
	Step     int    `json:"step"` // 1-based
	Total    int    `json:"total"`
	Revision uint64 `json:"revision"`
}

// AnalysisSummary is the headline of a finished analysis.
type AnalysisSummary struct {
	Nodes       int     `json:"nodes"`
	Edges       int     `json:"edges"`
	Density     float64 `json:"density"`
	Clusters    int     `json:"clusters"`
	BridgeNodes int     `json:"bridgeNodes"`
	Revision    uint64  `json:"revision"`
}
