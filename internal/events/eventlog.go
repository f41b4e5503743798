// Package events provides the append-only record of everything that happened
// during a simulation run: exposures, compartment transitions, isolation
// changes, and the heartbeat ticks of the driver.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeRunStarted      EventType = "RUN_STARTED"
	EventTypeRunCompleted    EventType = "RUN_COMPLETED"
	EventTypeTimeTick        EventType = "TIME_TICK"
	EventTypeAgentExposed    EventType = "AGENT_EXPOSED"
	EventTypeAgentInfectious EventType = "AGENT_INFECTIOUS"
	EventTypeAgentIsolated   EventType = "AGENT_ISOLATED"
	EventTypeAgentRecovered  EventType = "AGENT_RECOVERED"
	EventTypeAgentDeceased   EventType = "AGENT_DECEASED"
)

// SystemAgentID marks events emitted by the driver rather than by an agent.
const SystemAgentID = -1

// SimEvent represents an immutable record of one occurrence in a run.
type SimEvent struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	AgentID   int         `json:"agent_id"` // SystemAgentID for driver events
	Tick      int         `json:"tick"`
	Payload   interface{} `json:"payload"` // event-specific data
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event SimEvent) error
}

// EventLog is the in-memory append-only log of simulation events.
type EventLog struct {
	mu        sync.RWMutex
	events    []SimEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]SimEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event SimEvent) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.events = append(el.events, event)

	if el.persister != nil {
		// Write through to persistent storage. Run rates are low enough
		// that an unbuffered write-through per event is fine.
		go func(e SimEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// GetByAgent returns all events concerning a specific agent.
func (el *EventLog) GetByAgent(agentID int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if e.AgentID == agentID {
			result = append(result, e)
		}
	}
	return result
}

// GetByTick returns all events that occurred on a specific tick.
func (el *EventLog) GetByTick(tick int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if e.Tick == tick {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns the full history of events for state reconstruction.
func (el *EventLog) Replay() []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// Len returns the number of events appended so far.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
