package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveResult(ctx context.Context, res model.ExperimentResult) error
	SaveIssue(ctx context.Context, issue model.Issue) error
	ListResults(ctx context.Context, runID string) ([]model.ExperimentResult, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// dialect carries the statements that differ between drivers.
type dialect struct {
	schema       []string
	insertResult string
	insertIssue  string
	selectRun    string
}

type baseStore struct {
	db *sql.DB
	d  dialect
}

func (b *baseStore) Init(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range b.d.schema {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) SaveResult(ctx context.Context, res model.ExperimentResult) error {
	if b.db == nil {
		return nil
	}
	var task, free []float64
	if res.Window != nil {
		task, free = res.Window.Task, res.Window.Free
	}
	_, err := b.db.ExecContext(ctx, b.d.insertResult,
		res.RunID,
		res.ExperimentID,
		string(res.Variant),
		encodeJSON(res.Options),
		res.Excluded,
		res.TaskSummary.Attackable,
		res.TaskSummary.Total,
		res.FreeSummary.Attackable,
		res.FreeSummary.Total,
		encodeJSON(task),
		encodeJSON(free),
		res.CompletedAt.UnixMilli(),
	)
	return err
}

func (b *baseStore) SaveIssue(ctx context.Context, issue model.Issue) error {
	if b.db == nil {
		return nil
	}
	_, err := b.db.ExecContext(ctx, b.d.insertIssue,
		issue.Timestamp.UTC(),
		issue.RunID,
		issue.ExperimentID,
		issue.Kind,
		issue.Message,
	)
	return err
}

func (b *baseStore) ListResults(ctx context.Context, runID string) ([]model.ExperimentResult, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx, b.d.selectRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ExperimentResult, 0)
	for rows.Next() {
		var (
			res              model.ExperimentResult
			variant          string
			opts, task, free string
			completedMs      int64
		)
		if err := rows.Scan(
			&res.RunID,
			&res.ExperimentID,
			&variant,
			&opts,
			&res.Excluded,
			&res.TaskSummary.Attackable,
			&res.TaskSummary.Total,
			&res.FreeSummary.Attackable,
			&res.FreeSummary.Total,
			&task,
			&free,
			&completedMs,
		); err != nil {
			return nil, err
		}
		res.Variant = model.Variant(variant)
		res.CompletedAt = time.UnixMilli(completedMs).UTC()
		res.TaskSummary = withRatios(res.TaskSummary)
		res.FreeSummary = withRatios(res.FreeSummary)
		_ = json.Unmarshal([]byte(opts), &res.Options)
		if !res.Excluded {
			w := &model.WindowResult{}
			if err := json.Unmarshal([]byte(task), &w.Task); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(free), &w.Free); err != nil {
				return nil, err
			}
			res.Window = w
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func withRatios(s model.Summary) model.Summary {
	if s.Total > 0 {
		s.Percent = float64(s.Attackable) / float64(s.Total) * 100
	}
	s.Minutes = float64(s.Total) / 60
	return s
}
