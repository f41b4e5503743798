// Package storage - reconstructor.go
// Rebuilds run statistics from the persisted event log.
// This is the core of the audit path: stats = f(events).
package storage

import (
	"context"
	"fmt"
)

// Reconstructor rebuilds run statistics from persisted events.
// This is used for:
// 1. Recovering the summary of a run that was interrupted before completion
// 2. Auditing a stored summary against the event history
type Reconstructor struct {
	eventRepo EventRepository
	runRepo   RunRepository
}

// NewReconstructor creates a new statistics reconstructor.
func NewReconstructor(eventRepo EventRepository, runRepo RunRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo, runRepo: runRepo}
}

// RebuiltStats holds statistics recomputed from the event history.
type RebuiltStats struct {
	RunID         string `json:"run_id"`
	TotalInfected int    `json:"total_infected"`
	TotalDeceased int    `json:"total_deceased"`
	PeakCases     int    `json:"peak_cases"`
	LastTick      int    `json:"last_tick"`
}

// RebuildRunStats walks a run's event history in tick order and recomputes
// the cumulative and peak counters. The index case seeded at construction is
// a case from tick zero, so a non-empty population starts at one.
func (r *Reconstructor) RebuildRunStats(ctx context.Context, runID string) (*RebuiltStats, error) {
	run, err := r.runRepo.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("unknown run %s", runID)
	}

	events, err := r.eventRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for run %s: %w", runID, err)
	}

	stats := &RebuiltStats{RunID: runID}
	cases := 0
	if run.Population > 0 {
		stats.TotalInfected = 1
		cases = 1
		stats.PeakCases = 1
	}

	for _, e := range events {
		switch e.EventType {
		case "AGENT_EXPOSED":
			stats.TotalInfected++
			cases++
		case "AGENT_RECOVERED":
			cases--
		case "AGENT_DECEASED":
			stats.TotalDeceased++
			cases--
		}
		if cases > stats.PeakCases {
			stats.PeakCases = cases
		}
		if e.Tick > stats.LastTick {
			stats.LastTick = e.Tick
		}
	}

	return stats, nil
}

// RecoverInterruptedRuns finds runs without a completion record, rebuilds
// their statistics from events, and stores the result. Returns the run IDs
// that were recovered.
func (r *Reconstructor) RecoverInterruptedRuns(ctx context.Context) ([]string, error) {
	runs, err := r.runRepo.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	var recovered []string
	for _, run := range runs {
		if run.CompletedAt != nil {
			continue
		}
		stats, err := r.RebuildRunStats(ctx, run.RunID)
		if err != nil {
			return recovered, err
		}
		if err := r.runRepo.CompleteRun(ctx, run.RunID, stats.TotalInfected, stats.TotalDeceased, stats.PeakCases); err != nil {
			return recovered, err
		}
		recovered = append(recovered, run.RunID)
	}
	return recovered, nil
}
