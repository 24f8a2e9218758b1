// Package bus distributes pipeline events to in-process subscribers.
// The pipeline publishes one event per gate result plus one per finished
// request; subscribers such as the metrics collector aggregate them.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/normanking/stancegate/internal/gate"
)

// EventType names the kind of event.
type EventType string

const (
	// EventGate carries one gate summary.
	EventGate EventType = "gate"
	// EventRequestCompleted is published when a reply was generated.
	EventRequestCompleted EventType = "request_completed"
	// EventRequestHalted is published when the shield stopped generation.
	EventRequestHalted EventType = "request_halted"
)

// Event is a single pipeline event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RequestID string    `json:"requestId"`

	// Gate is set for EventGate.
	Gate *gate.Summary `json:"gate,omitempty"`

	// Set for request events.
	Stance     string `json:"stance,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	FailedOpen bool   `json:"failedOpen,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(t EventType, requestID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
		RequestID: requestID,
	}
}

// GateEvent wraps a gate summary.
func GateEvent(requestID string, sum gate.Summary) Event {
	e := NewEvent(EventGate, requestID)
	e.Gate = &sum
	return e
}
