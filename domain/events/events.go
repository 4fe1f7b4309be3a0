package events

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies this service on the event bus.
const Source = "concept-explorer"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// GraphBuilt is raised when an exploration graph has been built for a root
type GraphBuilt struct {
	BaseEvent
	RootID    string        `json:"root_id"`
	MaxDepth  int           `json:"max_depth"`
	NodeCount int           `json:"node_count"`
	EdgeCount int           `json:"edge_count"`
	Dropped   int           `json:"dropped"`
	Duration  time.Duration `json:"duration_ns"`
}

// NewGraphBuilt creates a GraphBuilt event
func NewGraphBuilt(rootID string, maxDepth, nodeCount, edgeCount, dropped int, duration time.Duration, timestamp time.Time) GraphBuilt {
	return GraphBuilt{
		BaseEvent: newBase(rootID, "graph.built", timestamp),
		RootID:    rootID,
		MaxDepth:  maxDepth,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		Dropped:   dropped,
		Duration:  duration,
	}
}

// ExplorationRerooted is raised when a session moves to a new root concept
type ExplorationRerooted struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	PreviousID string `json:"previous_id,omitempty"`
	RootID     string `json:"root_id"`
}

// NewExplorationRerooted creates an ExplorationRerooted event
func NewExplorationRerooted(sessionID, previousID, rootID string, timestamp time.Time) ExplorationRerooted {
	return ExplorationRerooted{
		BaseEvent:  newBase(sessionID, "exploration.rerooted", timestamp),
		SessionID:  sessionID,
		PreviousID: previousID,
		RootID:     rootID,
	}
}
