package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event SimEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO run_events (id, run_id, timestamp, event_type, agent_id, tick, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.RunID, event.Timestamp, event.EventType,
		event.AgentID, event.Tick, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]SimEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SimEvent
	for rows.Next() {
		var e SimEvent
		var payloadStr string
		err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.EventType, &e.AgentID, &e.Tick, &payloadStr)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByRunID(ctx context.Context, runID string) ([]SimEvent, error) {
	query := `SELECT id, run_id, timestamp, event_type, agent_id, tick, payload FROM run_events WHERE run_id = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(ctx, query, runID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, runID, eventType string) ([]SimEvent, error) {
	query := `SELECT id, run_id, timestamp, event_type, agent_id, tick, payload FROM run_events WHERE run_id = ? AND event_type = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(ctx, query, runID, eventType)
}

// ---------------------------------------------------------
// SQLiteRunRepository
// ---------------------------------------------------------

type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

func (r *SQLiteRunRepository) CreateRun(ctx context.Context, run RunRecord) error {
	query := `
		INSERT INTO runs (run_id, started_at, population, width, height, mask_proportion, self_isolation_proportion, tick_budget, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.RunID, run.StartedAt, run.Population, run.Width, run.Height,
		run.MaskProportion, run.SelfIsolationProportion, run.TickBudget, run.Seed,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (r *SQLiteRunRepository) CompleteRun(ctx context.Context, runID string, totalInfected, totalDeceased, peakCases int) error {
	query := `
		UPDATE runs
		SET completed_at = ?, total_infected = ?, total_deceased = ?, peak_cases = ?
		WHERE run_id = ?
	`
	res, err := r.db.ExecContext(ctx, query, time.Now(), totalInfected, totalDeceased, peakCases, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete run: unknown run %s", runID)
	}
	return nil
}

const runColumns = `run_id, started_at, completed_at, population, width, height, mask_proportion, self_isolation_proportion, tick_budget, seed, total_infected, total_deceased, peak_cases`

func scanRun(scan func(dest ...interface{}) error) (RunRecord, error) {
	var rec RunRecord
	var completed sql.NullTime
	err := scan(
		&rec.RunID, &rec.StartedAt, &completed, &rec.Population, &rec.Width, &rec.Height,
		&rec.MaskProportion, &rec.SelfIsolationProportion, &rec.TickBudget, &rec.Seed,
		&rec.TotalInfected, &rec.TotalDeceased, &rec.PeakCases,
	)
	if err != nil {
		return rec, err
	}
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return rec, nil
}

func (r *SQLiteRunRepository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *SQLiteRunRepository) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
