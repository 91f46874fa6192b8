package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
	"compliancesync/internal/services/history"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func sampleRun(id string, minute int) domain.AnalysisRun {
	ts := time.Date(2026, 7, 1, 8, minute, 0, 0, time.UTC)
	return domain.AnalysisRun{
		ID:        id,
		Timestamp: ts,
		Company:   "Acme",
		Results: []domain.JurisdictionResult{
			{
				JurisdictionID:   "us",
				JurisdictionName: "United States",
				Flag:             "🇺🇸",
				ComplianceScore:  82,
				Status:           domain.StatusPartial,
				RiskLevel:        domain.RiskMedium,
				Requirements:     domain.RequirementCounts{Total: 1, Met: 1},
				RequirementsList: []domain.Requirement{{ID: "r1", Category: "privacy", Status: domain.RequirementMet, Risk: domain.RiskLow}},
				AnalyzedAt:       ts,
			},
			domain.FailedResult("eu", domain.JurisdictionEntry{Name: "European Union"}, "analysis timed out", ts),
		},
	}
}

func TestRuns_InsertListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)

	runs, err := db.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	a, b := sampleRun("a", 1), sampleRun("b", 2)
	require.NoError(t, db.Insert(ctx, a))
	require.NoError(t, db.Insert(ctx, b))

	runs, err = db.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b, runs[0])
	assert.Equal(t, a, runs[1])
	assert.Equal(t, "analysis timed out", runs[0].Results[1].Error)
}

func TestRuns_PersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	store, err := history.Open(ctx, db)
	require.NoError(t, err)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, sampleRun(id, i)))
	}
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	store, err = history.Open(ctx, db)
	require.NoError(t, err)

	log := store.Load()
	require.Len(t, log, 3)
	assert.Equal(t, "third", log[0].ID)
	assert.Equal(t, "first", log[2].ID)
}

func TestRuns_MalformedRow(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	require.NoError(t, db.Insert(ctx, sampleRun("a", 1)))
	_, err := db.SQL.ExecContext(ctx, `INSERT INTO analysis_runs (run_id, created_at, payload) VALUES ('bad', '2026-07-01T00:00:00Z', '{not json')`)
	require.NoError(t, err)

	_, err = db.List(ctx)
	assert.ErrorIs(t, err, ports.ErrMalformed)

	store, err := history.Open(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, store.Load())
}

func TestRuns_DuplicateRunID(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	require.NoError(t, db.Insert(ctx, sampleRun("a", 1)))
	assert.Error(t, db.Insert(ctx, sampleRun("a", 2)))
}

func TestMigrate_Idempotent(t *testing.T) {
	db, _ := openTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
}
