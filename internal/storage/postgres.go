package storage

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/nfcexposure?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, d: postgresDialect}}, nil
}

var postgresDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS results (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			experiment_id TEXT NOT NULL,
			variant TEXT NOT NULL,
			options_json JSONB NOT NULL,
			excluded BOOLEAN NOT NULL,
			task_attackable INTEGER NOT NULL,
			task_total INTEGER NOT NULL,
			free_attackable INTEGER NOT NULL,
			free_total INTEGER NOT NULL,
			task_json JSONB NOT NULL,
			free_json JSONB NOT NULL,
			completed_at_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, experiment_id)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			run_id TEXT NOT NULL,
			experiment_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id)`,
	},
	insertResult: `INSERT INTO results (run_id, experiment_id, variant, options_json, excluded,
			task_attackable, task_total, free_attackable, free_total, task_json, free_json, completed_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	insertIssue: `INSERT INTO issues (ts, run_id, experiment_id, kind, message)
		VALUES ($1, $2, $3, $4, $5)`,
	selectRun: `SELECT run_id, experiment_id, variant, options_json::text, excluded,
			task_attackable, task_total, free_attackable, free_total, task_json::text, free_json::text, completed_at_ms
		FROM results WHERE run_id = $1 ORDER BY experiment_id`,
}
