package collector

import (
	"context"
	"fmt"

	"github.com/nerrad567/sigenflux/internal/infrastructure/database"
)

// RunLog persists tick history to the local SQLite database.
//
// The run log exists for one question: "why is there a gap in the series
// between 02:00 and 04:00 last Tuesday?" InfluxDB shows the absence;
// the run log shows whether the collector ran and what failed.
type RunLog struct {
	db *database.DB
}

// NewRunLog creates a run log backed by the given database.
func NewRunLog(db *database.DB) *RunLog {
	return &RunLog{db: db}
}

// RecordTick inserts the tick and its per-dataset results in one
// transaction.
func (r *RunLog) RecordTick(ctx context.Context, report *TickReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run log transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collection_runs (run_id, started_at, finished_at, datasets, failures)
		 VALUES (?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		report.FinishedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		len(report.Results),
		len(report.Failed()),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, res := range report.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO collection_results (run_id, dataset, success, records_written, error)
			 VALUES (?, ?, ?, ?, ?)`,
			report.RunID, res.Dataset, res.Success, res.RecordsWritten, errText,
		)
		if err != nil {
			return fmt.Errorf("inserting result for %s: %w", res.Dataset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run log: %w", err)
	}

	return nil
}
