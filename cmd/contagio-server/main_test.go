package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/infra/storage"
)

func TestPersisterAdapterKeepsScalarPayloads(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "adapter_test.db"))
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	defer db.Close()

	repo := storage.NewSQLiteEventRepository(db)
	adapter := &SQLitePersisterAdapter{repo: repo}

	// Compartment transitions carry the compartment name as a plain string.
	if err := adapter.Append(events.SimEvent{
		ID:        "E1",
		RunID:     "RUN_1",
		Timestamp: time.Now(),
		Type:      events.EventTypeAgentInfectious,
		AgentID:   3,
		Tick:      11,
		Payload:   "INFECTIOUS_SYMPTOMATIC",
	}); err != nil {
		t.Fatalf("Append string payload: %v", err)
	}

	got, err := repo.GetByRunID(context.Background(), "RUN_1")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 persisted event, got %d", len(got))
	}
	if got[0].Payload == nil {
		t.Fatalf("Expected the string payload to survive persistence, got nil")
	}
	if v, ok := got[0].Payload["value"].(string); !ok || v != "INFECTIOUS_SYMPTOMATIC" {
		t.Errorf("Expected wrapped payload value INFECTIOUS_SYMPTOMATIC, got %v", got[0].Payload["value"])
	}
}

func TestPersisterAdapterKeepsObjectPayloads(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "adapter_test.db"))
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	defer db.Close()

	repo := storage.NewSQLiteEventRepository(db)
	adapter := &SQLitePersisterAdapter{repo: repo}

	if err := adapter.Append(events.SimEvent{
		ID:        "E2",
		RunID:     "RUN_2",
		Timestamp: time.Now(),
		Type:      events.EventTypeAgentExposed,
		AgentID:   5,
		Tick:      2,
		Payload:   map[string]interface{}{"source_id": 12},
	}); err != nil {
		t.Fatalf("Append object payload: %v", err)
	}

	got, err := repo.GetByRunID(context.Background(), "RUN_2")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 persisted event, got %d", len(got))
	}
	if src, ok := got[0].Payload["source_id"].(float64); !ok || int(src) != 12 {
		t.Errorf("Expected source_id 12 in payload, got %v", got[0].Payload["source_id"])
	}
}
