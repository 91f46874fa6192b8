package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
)

// RunRepository

func (db *DB) Insert(ctx context.Context, run domain.AnalysisRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO analysis_runs (run_id, created_at, payload)
        VALUES ($1, $2, $3)
    `, run.ID, run.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (db *DB) List(ctx context.Context) ([]domain.AnalysisRun, error) {
	rows, err := db.Pool.Query(ctx, `SELECT run_id, payload FROM analysis_runs ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.AnalysisRun{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var run domain.AnalysisRun
		if err := json.Unmarshal(payload, &run); err != nil {
			return nil, fmt.Errorf("run %s: %w", id, ports.ErrMalformed)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
