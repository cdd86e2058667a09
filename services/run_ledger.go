package services

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"
)

// RunLedgerConfig controls the append-only run history database.
type RunLedgerConfig struct {
	Enabled bool
	DBPath  string
}

// RunLedger records processing runs for the history and stats endpoints.
// Every write error is logged and swallowed: the ledger must never fail a
// run.
type RunLedger struct {
	db *sql.DB
}

// NewRunLedger opens (or creates) the ledger database. With Enabled false
// every operation is a no-op.
func NewRunLedger(cfg RunLedgerConfig) (*RunLedger, error) {
	rl := &RunLedger{}
	if !cfg.Enabled {
		return rl, nil
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS processing_runs (
			run_id          TEXT PRIMARY KEY,
			start_timestamp TIMESTAMP NOT NULL,
			end_timestamp   TIMESTAMP,
			total_files     INTEGER NOT NULL DEFAULT 0,
			successful      INTEGER NOT NULL DEFAULT 0,
			failed          INTEGER NOT NULL DEFAULT 0,
			schema_key      TEXT NOT NULL,
			schema_name     TEXT NOT NULL,
			model_key       TEXT NOT NULL,
			instructions    TEXT,
			input_tokens    INTEGER NOT NULL DEFAULT 0,
			output_tokens   INTEGER NOT NULL DEFAULT 0,
			total_tokens    INTEGER NOT NULL DEFAULT 0,
			requests        INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL,
			created_at      TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_start ON processing_runs(start_timestamp);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON processing_runs(status);
		CREATE INDEX IF NOT EXISTS idx_runs_model ON processing_runs(model_key);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON processing_runs(created_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	rl.db = db
	logger.Info("run ledger opened", "path", cfg.DBPath)
	return rl, nil
}

// InsertRunStart records the start of a run. Inserting the same run twice
// is a harmless no-op.
func (rl *RunLedger) InsertRunStart(rec models.RunRecord) {
	if rl.db == nil {
		return
	}
	_, err := rl.db.Exec(`
		INSERT OR IGNORE INTO processing_runs
			(run_id, start_timestamp, total_files, schema_key, schema_name,
			 model_key, instructions, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.StartedAt, rec.TotalFiles, rec.SchemaKey, rec.SchemaName,
		rec.ModelID, rec.Instructions, string(models.RunStatusRunning), time.Now())
	if err != nil {
		logger.Warn("failed to record run start", "run_id", rec.RunID, "error", err)
	}
}

// UpdateRunComplete finalizes a run row. Unknown run IDs log a warning and
// drop the update.
func (rl *RunLedger) UpdateRunComplete(rec models.RunRecord) {
	if rl.db == nil {
		return
	}
	endedAt := time.Now()
	if rec.EndedAt != nil {
		endedAt = *rec.EndedAt
	}
	res, err := rl.db.Exec(`
		UPDATE processing_runs SET
			end_timestamp = ?, total_files = ?, successful = ?, failed = ?,
			input_tokens = ?, output_tokens = ?, total_tokens = ?, requests = ?,
			status = ?
		WHERE run_id = ?`,
		endedAt, rec.TotalFiles, rec.Successful, rec.Failed,
		rec.Usage.Input, rec.Usage.Output, rec.Usage.Total, rec.Usage.Requests,
		string(rec.Status), rec.RunID)
	if err != nil {
		logger.Warn("failed to record run completion", "run_id", rec.RunID, "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Warn("run completion for unknown run", "run_id", rec.RunID)
	}
}

// RecentRuns returns the newest runs, most recent first.
func (rl *RunLedger) RecentRuns(limit int) []models.RunRecord {
	if rl.db == nil {
		return nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := rl.db.Query(`
		SELECT run_id, start_timestamp, end_timestamp, total_files, successful,
		       failed, schema_key, schema_name, model_key, instructions,
		       input_tokens, output_tokens, total_tokens, requests, status
		FROM processing_runs
		ORDER BY start_timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		logger.Warn("failed to list runs", "error", err)
		return nil
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var endedAt sql.NullTime
		var instructions sql.NullString
		var status string
		if err := rows.Scan(&rec.RunID, &rec.StartedAt, &endedAt, &rec.TotalFiles,
			&rec.Successful, &rec.Failed, &rec.SchemaKey, &rec.SchemaName,
			&rec.ModelID, &instructions, &rec.Usage.Input, &rec.Usage.Output,
			&rec.Usage.Total, &rec.Usage.Requests, &status); err != nil {
			logger.Warn("failed to scan run row", "error", err)
			continue
		}
		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		rec.Instructions = instructions.String
		rec.Status = models.RunStatus(status)
		out = append(out, rec)
	}
	return out
}

// Stats aggregates runs over the trailing number of days.
func (rl *RunLedger) Stats(days int) models.RunStats {
	if days <= 0 {
		days = 30
	}
	stats := models.RunStats{Days: days}
	if rl.db == nil {
		return stats
	}

	since := time.Now().AddDate(0, 0, -days)
	err := rl.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(total_files), 0),
		       COALESCE(SUM(successful), 0),
		       COALESCE(SUM(failed), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(requests), 0)
		FROM processing_runs
		WHERE start_timestamp >= ?`, since).Scan(
		&stats.Runs, &stats.Completed, &stats.Failed, &stats.TotalFiles,
		&stats.FilesSucceeded, &stats.FilesFailed, &stats.TotalTokens, &stats.TotalRequests)
	if err != nil {
		logger.Warn("failed to aggregate run stats", "error", err)
	}
	return stats
}

// Close releases the underlying database.
func (rl *RunLedger) Close() {
	if rl.db != nil {
		rl.db.Close()
	}
}
