package events

import (
	"time"
)

type Type string

const (
	QueueEnqueued      Type = "queue.enqueued"
	QueueCompleted     Type = "queue.completed"
	QueueCancelled     Type = "queue.cancelled"
	MovementDispatched Type = "movement.dispatched"
	MovementArrived    Type = "movement.arrived"
	MovementRecalled   Type = "movement.recalled"
)

// Event describes a state change after it has been committed.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	EmpireID  string                 `json:"empire_id"`
	SubjectID string                 `json:"subject_id"`
	BaseID    string                 `json:"base_id,omitempty"`
	FleetID   string                 `json:"fleet_id,omitempty"`
	At        time.Time              `json:"at"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
