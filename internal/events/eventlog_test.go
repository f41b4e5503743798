package events

import (
	"testing"
	"time"
)

func makeEvent(runID string, t EventType, agentID, tick int) SimEvent {
	return SimEvent{
		ID:        GenerateEventID(),
		RunID:     runID,
		Timestamp: time.Now(),
		Type:      t,
		AgentID:   agentID,
		Tick:      tick,
	}
}

func TestAppendAndReplayOrder(t *testing.T) {
	el := NewEventLog(nil)

	el.Append(makeEvent("R1", EventTypeRunStarted, SystemAgentID, 0))
	el.Append(makeEvent("R1", EventTypeAgentExposed, 3, 1))
	el.Append(makeEvent("R1", EventTypeAgentInfectious, 3, 5))
	el.Append(makeEvent("R1", EventTypeRunCompleted, SystemAgentID, 10))

	if el.Len() != 4 {
		t.Fatalf("Expected 4 events, got %d", el.Len())
	}

	history := el.Replay()
	wantOrder := []EventType{
		EventTypeRunStarted,
		EventTypeAgentExposed,
		EventTypeAgentInfectious,
		EventTypeRunCompleted,
	}
	for i, want := range wantOrder {
		if history[i].Type != want {
			t.Errorf("Expected event %d to be %s, got %s", i, want, history[i].Type)
		}
	}
}

func TestFilterByAgentAndTick(t *testing.T) {
	el := NewEventLog(nil)

	el.Append(makeEvent("R1", EventTypeAgentExposed, 1, 2))
	el.Append(makeEvent("R1", EventTypeAgentExposed, 2, 2))
	el.Append(makeEvent("R1", EventTypeAgentInfectious, 1, 7))
	el.Append(makeEvent("R1", EventTypeTimeTick, SystemAgentID, 7))

	byAgent := el.GetByAgent(1)
	if len(byAgent) != 2 {
		t.Fatalf("Expected 2 events for agent 1, got %d", len(byAgent))
	}
	for _, e := range byAgent {
		if e.AgentID != 1 {
			t.Errorf("Expected only agent 1 events, got agent %d", e.AgentID)
		}
	}

	byTick := el.GetByTick(7)
	if len(byTick) != 2 {
		t.Fatalf("Expected 2 events on tick 7, got %d", len(byTick))
	}
	for _, e := range byTick {
		if e.Tick != 7 {
			t.Errorf("Expected only tick 7 events, got tick %d", e.Tick)
		}
	}

	if got := el.GetByAgent(99); len(got) != 0 {
		t.Errorf("Expected no events for unknown agent, got %d", len(got))
	}
}

// chanPersister collects persisted events on a channel so the test can wait
// for the asynchronous write-through without sleeping.
type chanPersister struct {
	ch chan SimEvent
}

func (p *chanPersister) Append(e SimEvent) error {
	p.ch <- e
	return nil
}

func TestPersisterWriteThrough(t *testing.T) {
	p := &chanPersister{ch: make(chan SimEvent, 8)}
	el := NewEventLog(p)

	el.Append(makeEvent("R1", EventTypeAgentExposed, 4, 3))
	el.Append(makeEvent("R1", EventTypeAgentRecovered, 4, 20))

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-p.ch:
			if e.RunID != "R1" {
				t.Errorf("Expected run R1 on persisted event, got %s", e.RunID)
			}
			seen[e.Type] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for persisted event %d", i)
		}
	}
	if !seen[EventTypeAgentExposed] || !seen[EventTypeAgentRecovered] {
		t.Errorf("Expected both events to reach the persister, saw %v", seen)
	}
}

func TestGenerateEventIDUnique(t *testing.T) {
	a, b := GenerateEventID(), GenerateEventID()
	if a == "" || a == b {
		t.Errorf("Expected distinct non-empty event IDs, got %q and %q", a, b)
	}
}
