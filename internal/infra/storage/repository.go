// Package storage provides the persistence layer for simulation runs.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// SimEvent mirrors the domain event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type SimEvent struct {
	ID        string                 `json:"id" db:"id"`
	RunID     string                 `json:"run_id" db:"run_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	AgentID   int                    `json:"agent_id" db:"agent_id"`
	Tick      int                    `json:"tick" db:"tick"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event SimEvent) error

	// GetByRunID retrieves all events for a run, in append order.
	GetByRunID(ctx context.Context, runID string) ([]SimEvent, error)

	// GetByEventType retrieves all events of a specific type for a run.
	GetByEventType(ctx context.Context, runID, eventType string) ([]SimEvent, error)
}

// RunRecord is the persisted summary of one simulation run: the construction
// parameters and, once completed, the three final statistics.
type RunRecord struct {
	RunID                   string     `json:"run_id" db:"run_id"`
	StartedAt               time.Time  `json:"started_at" db:"started_at"`
	CompletedAt             *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Population              int        `json:"population" db:"population"`
	Width                   float64    `json:"width" db:"width"`
	Height                  float64    `json:"height" db:"height"`
	MaskProportion          float64    `json:"mask_proportion" db:"mask_proportion"`
	SelfIsolationProportion float64    `json:"self_isolation_proportion" db:"self_isolation_proportion"`
	TickBudget              int        `json:"tick_budget" db:"tick_budget"`
	Seed                    int64      `json:"seed" db:"seed"`
	TotalInfected           int        `json:"total_infected" db:"total_infected"`
	TotalDeceased           int        `json:"total_deceased" db:"total_deceased"`
	PeakCases               int        `json:"peak_cases" db:"peak_cases"`
}

// RunRepository defines the interface for the run registry.
type RunRepository interface {
	// CreateRun registers a run and its construction parameters.
	CreateRun(ctx context.Context, run RunRecord) error

	// CompleteRun stores the final statistics and the completion time.
	CompleteRun(ctx context.Context, runID string, totalInfected, totalDeceased, peakCases int) error

	// GetRun retrieves one run, or nil if unknown.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns retrieves all runs, most recent first.
	ListRuns(ctx context.Context) ([]RunRecord, error)
}
