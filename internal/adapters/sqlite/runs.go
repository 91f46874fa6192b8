package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
)

// Insert stores run as the newest history entry.
func (db *DB) Insert(ctx context.Context, run domain.AnalysisRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = db.SQL.ExecContext(ctx,
		`INSERT INTO analysis_runs (run_id, created_at, payload) VALUES (?, ?, ?)`,
		run.ID, run.Timestamp.UTC().Format(time.RFC3339Nano), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns all runs newest first. Any undecodable row makes the whole
// log ports.ErrMalformed.
func (db *DB) List(ctx context.Context) ([]domain.AnalysisRun, error) {
	rows, err := db.SQL.QueryContext(ctx, `SELECT run_id, payload FROM analysis_runs ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := []domain.AnalysisRun{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var run domain.AnalysisRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("run %s: %w", id, ports.ErrMalformed)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
