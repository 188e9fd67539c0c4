package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/chorus/pkg/models"
)

// Tracker records and queries per-backend invocation telemetry.
type Tracker interface {
	// Record stores one successful backend invocation.
	Record(ctx context.Context, rec models.UsageRecord) error
	// QueryByModel returns records for a model since a given time.
	QueryByModel(ctx context.Context, model string, since time.Time) ([]models.UsageRecord, error)
	// TaskRecords returns every record of one coordinated call.
	TaskRecords(ctx context.Context, taskID string) ([]models.UsageRecord, error)
	// Summary returns per-model aggregates, optionally filtered by model.
	Summary(ctx context.Context, model string) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS backend_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	model TEXT NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_calls_task ON backend_calls(task_id);
CREATE INDEX IF NOT EXISTS idx_calls_model_time ON backend_calls(model, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record. A zero CreatedAt is stamped with the current time.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO backend_calls (task_id, domain, model, elapsed_ms, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, string(rec.Domain), rec.Model, rec.ElapsedMs,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

const selectRecords = `SELECT id, task_id, domain, model, elapsed_ms, prompt_tokens, completion_tokens, total_tokens, created_at
	 FROM backend_calls`

// QueryByModel returns records for model created at or after since.
func (t *SQLiteTracker) QueryByModel(ctx context.Context, model string, since time.Time) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		selectRecords+` WHERE model = ? AND created_at >= ? ORDER BY created_at, id`,
		model, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	return scanRecords(rows)
}

// TaskRecords returns the records of one task in insertion order.
func (t *SQLiteTracker) TaskRecords(ctx context.Context, taskID string) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx, selectRecords+` WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task usage: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.UsageRecord, error) {
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var domain string
		if err := rows.Scan(&r.ID, &r.TaskID, &domain, &r.Model, &r.ElapsedMs,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Domain = models.Domain(domain)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns usage grouped by model.
func (t *SQLiteTracker) Summary(ctx context.Context, model string) ([]models.UsageSummary, error) {
	query := `SELECT model, COUNT(*), AVG(elapsed_ms), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		 FROM backend_calls`
	var args []any
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` GROUP BY model ORDER BY model`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Model, &s.RequestCount, &s.AvgElapsedMs, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
