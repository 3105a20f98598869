package tasklog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_logs (
	task_id     TEXT PRIMARY KEY,
	trace_id    TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	status      TEXT NOT NULL,
	steps       JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink stores task logs in the task_logs table.
type PostgresSink struct {
	db Execer
}

func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// Migrate creates the task_logs table when it is missing.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create task_logs: %w", err)
	}
	return nil
}

func (s *PostgresSink) Save(ctx context.Context, log *Log) error {
	steps, err := json.Marshal(log.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	query := `
		INSERT INTO task_logs (task_id, trace_id, url, status, steps, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id) DO UPDATE
		SET status = EXCLUDED.status, steps = EXCLUDED.steps, finished_at = EXCLUDED.finished_at, updated_at = NOW()
	`

	var finished any
	if !log.FinishedAt.IsZero() {
		finished = log.FinishedAt
	}

	_, err = s.db.Exec(ctx, query,
		log.TaskID,
		log.TraceID,
		log.URL,
		log.Status,
		steps,
		log.StartedAt,
		finished,
	)
	return err
}
