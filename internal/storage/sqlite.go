package storage

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:nfcexposure.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, d: sqliteDialect}}, nil
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			experiment_id TEXT NOT NULL,
			variant TEXT NOT NULL,
			options_json TEXT NOT NULL,
			excluded INTEGER NOT NULL,
			task_attackable INTEGER NOT NULL,
			task_total INTEGER NOT NULL,
			free_attackable INTEGER NOT NULL,
			free_total INTEGER NOT NULL,
			task_json TEXT NOT NULL,
			free_json TEXT NOT NULL,
			completed_at_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, experiment_id)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			run_id TEXT NOT NULL,
			experiment_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id)`,
	},
	insertResult: `INSERT INTO results (run_id, experiment_id, variant, options_json, excluded,
			task_attackable, task_total, free_attackable, free_total, task_json, free_json, completed_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	insertIssue: `INSERT INTO issues (ts, run_id, experiment_id, kind, message)
		VALUES (?, ?, ?, ?, ?)`,
	selectRun: `SELECT run_id, experiment_id, variant, options_json, excluded,
			task_attackable, task_total, free_attackable, free_total, task_json, free_json, completed_at_ms
		FROM results WHERE run_id = ? ORDER BY experiment_id`,
}
