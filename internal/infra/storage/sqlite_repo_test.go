package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "contagio_test.db"))
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(runID string, population int) RunRecord {
	return RunRecord{
		RunID:                   runID,
		StartedAt:               time.Now(),
		Population:              population,
		Width:                   200,
		Height:                  200,
		MaskProportion:          0.5,
		SelfIsolationProportion: 0.5,
		TickBudget:              8640,
		Seed:                    42,
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRunRepository(db)
	ctx := context.Background()

	if err := repo.CreateRun(ctx, testRun("RUN_1", 400)); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run, err := repo.GetRun(ctx, "RUN_1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil {
		t.Fatalf("Expected run RUN_1 to exist")
	}
	if run.Population != 400 || run.TickBudget != 8640 || run.Seed != 42 {
		t.Errorf("Run parameters not round-tripped: %+v", run)
	}
	if run.CompletedAt != nil {
		t.Errorf("Expected fresh run to have no completion time")
	}

	if err := repo.CompleteRun(ctx, "RUN_1", 250, 4, 80); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	run, err = repo.GetRun(ctx, "RUN_1")
	if err != nil {
		t.Fatalf("GetRun after completion: %v", err)
	}
	if run.CompletedAt == nil {
		t.Errorf("Expected completion time to be set")
	}
	if run.TotalInfected != 250 || run.TotalDeceased != 4 || run.PeakCases != 80 {
		t.Errorf("Final statistics not stored: %+v", run)
	}

	// Unknown runs: GetRun reports absence, CompleteRun reports an error.
	missing, err := repo.GetRun(ctx, "NO_SUCH_RUN")
	if err != nil {
		t.Fatalf("GetRun unknown: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown run, got %+v", missing)
	}
	if err := repo.CompleteRun(ctx, "NO_SUCH_RUN", 0, 0, 0); err == nil {
		t.Errorf("Expected completing an unknown run to fail")
	}
}

func TestListRunsMostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRunRepository(db)
	ctx := context.Background()

	older := testRun("RUN_OLD", 10)
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := testRun("RUN_NEW", 20)

	if err := repo.CreateRun(ctx, older); err != nil {
		t.Fatalf("CreateRun old: %v", err)
	}
	if err := repo.CreateRun(ctx, newer); err != nil {
		t.Fatalf("CreateRun new: %v", err)
	}

	runs, err := repo.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "RUN_NEW" || runs[1].RunID != "RUN_OLD" {
		t.Errorf("Expected most recent first, got %s then %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestEventRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	events := []SimEvent{
		{ID: "E1", RunID: "RUN_1", Timestamp: time.Now(), EventType: "AGENT_EXPOSED", AgentID: 7, Tick: 3,
			Payload: map[string]interface{}{"source_id": 12}},
		{ID: "E2", RunID: "RUN_1", Timestamp: time.Now(), EventType: "AGENT_INFECTIOUS", AgentID: 7, Tick: 11},
		{ID: "E3", RunID: "RUN_2", Timestamp: time.Now(), EventType: "AGENT_EXPOSED", AgentID: 1, Tick: 2},
	}
	for _, e := range events {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append %s: %v", e.ID, err)
		}
	}

	got, err := repo.GetByRunID(ctx, "RUN_1")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events for RUN_1, got %d", len(got))
	}
	if got[0].Tick > got[1].Tick {
		t.Errorf("Expected events in tick order, got ticks %d then %d", got[0].Tick, got[1].Tick)
	}
	if got[0].Payload == nil {
		t.Fatalf("Expected payload to survive the round trip")
	}
	if src, ok := got[0].Payload["source_id"].(float64); !ok || int(src) != 12 {
		t.Errorf("Expected source_id 12 in payload, got %v", got[0].Payload["source_id"])
	}

	exposed, err := repo.GetByEventType(ctx, "RUN_1", "AGENT_EXPOSED")
	if err != nil {
		t.Fatalf("GetByEventType: %v", err)
	}
	if len(exposed) != 1 || exposed[0].ID != "E1" {
		t.Errorf("Expected only E1 as AGENT_EXPOSED in RUN_1, got %+v", exposed)
	}
}

func TestRebuildAndRecover(t *testing.T) {
	db := openTestDB(t)
	runRepo := NewSQLiteRunRepository(db)
	eventRepo := NewSQLiteEventRepository(db)
	rec := NewReconstructor(eventRepo, runRepo)
	ctx := context.Background()

	// An interrupted run: registered, events written, never completed.
	if err := runRepo.CreateRun(ctx, testRun("RUN_X", 3)); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	history := []SimEvent{
		{ID: "X1", RunID: "RUN_X", Timestamp: time.Now(), EventType: "AGENT_EXPOSED", AgentID: 0, Tick: 2},
		{ID: "X2", RunID: "RUN_X", Timestamp: time.Now(), EventType: "AGENT_EXPOSED", AgentID: 2, Tick: 3},
		{ID: "X3", RunID: "RUN_X", Timestamp: time.Now(), EventType: "AGENT_RECOVERED", AgentID: 0, Tick: 5},
		{ID: "X4", RunID: "RUN_X", Timestamp: time.Now(), EventType: "AGENT_DECEASED", AgentID: 2, Tick: 8},
	}
	for _, e := range history {
		if err := eventRepo.Append(ctx, e); err != nil {
			t.Fatalf("Append %s: %v", e.ID, err)
		}
	}

	// Seed counts as a case from tick zero, the two exposures push the
	// concurrent count to three, then one recovery and one death bring it
	// back down.
	stats, err := rec.RebuildRunStats(ctx, "RUN_X")
	if err != nil {
		t.Fatalf("RebuildRunStats: %v", err)
	}
	if stats.TotalInfected != 3 {
		t.Errorf("Expected 3 total infected, got %d", stats.TotalInfected)
	}
	if stats.TotalDeceased != 1 {
		t.Errorf("Expected 1 death, got %d", stats.TotalDeceased)
	}
	if stats.PeakCases != 3 {
		t.Errorf("Expected peak 3, got %d", stats.PeakCases)
	}
	if stats.LastTick != 8 {
		t.Errorf("Expected last tick 8, got %d", stats.LastTick)
	}

	recovered, err := rec.RecoverInterruptedRuns(ctx)
	if err != nil {
		t.Fatalf("RecoverInterruptedRuns: %v", err)
	}
	if len(recovered) != 1 || recovered[0] != "RUN_X" {
		t.Fatalf("Expected RUN_X to be recovered, got %v", recovered)
	}

	run, err := runRepo.GetRun(ctx, "RUN_X")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.CompletedAt == nil {
		t.Errorf("Expected recovered run to be marked complete")
	}
	if run.TotalInfected != 3 || run.TotalDeceased != 1 || run.PeakCases != 3 {
		t.Errorf("Recovered statistics wrong: %+v", run)
	}

	// A second recovery pass finds nothing left to do.
	again, err := rec.RecoverInterruptedRuns(ctx)
	if err != nil {
		t.Fatalf("Second recovery pass: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected no runs left to recover, got %v", again)
	}
}
