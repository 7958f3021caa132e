package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"nfcexposure/internal/config"
	"nfcexposure/internal/detect"
	"nfcexposure/internal/engine"
	"nfcexposure/internal/ingest"
	"nfcexposure/internal/issues"
	"nfcexposure/internal/model"
	"nfcexposure/internal/publish"
	"nfcexposure/internal/report"
)

type Runner interface {
	Run(ctx context.Context, exp model.ExperimentConfig) (*model.ExperimentResult, error)
}

// ResultStore persists results and issues. storage.Store satisfies it.
type ResultStore interface {
	SaveResult(ctx context.Context, res model.ExperimentResult) error
	SaveIssue(ctx context.Context, issue model.Issue) error
}

type Driver struct {
	cfg       config.BatchConfig
	report    config.ReportConfig
	study     config.StudyConfig
	pattern   *regexp.Regexp
	runner    Runner
	issues    *issues.Store
	store     ResultStore
	publisher publish.Publisher
	logger    *slog.Logger
	newRunID  func() string
}

type Outcome struct {
	RunID   string
	Results []model.ExperimentResult
	Issues  []model.Issue
}

func NewDriver(cfg *config.Config, runner Runner, issuesStore *issues.Store, store ResultStore, publisher publish.Publisher, logger *slog.Logger) (*Driver, error) {
	pattern, err := regexp.Compile(cfg.Batch.DirPattern)
	if err != nil {
		return nil, fmt.Errorf("batch: dir pattern: %w", err)
	}
	return &Driver{
		cfg:       cfg.Batch,
		report:    cfg.Report,
		study:     cfg.Study,
		pattern:   pattern,
		runner:    runner,
		issues:    issuesStore,
		store:     store,
		publisher: publisher,
		logger:    logger,
		newRunID:  uuid.NewString,
	}, nil
}

// Run pairs every experiment directory with its study line and runs them in
// order. A failed experiment halts the batch unless ContinueOnError is set, in
// which case it is recorded as an issue and the next experiment runs.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	dirs, err := DiscoverExperiments(d.cfg.Root, d.pattern)
	if err != nil {
		return nil, err
	}
	lines, err := readStudyFile(filepath.Join(d.cfg.Root, d.cfg.StudyFile))
	if err != nil {
		return nil, err
	}
	if len(dirs) != len(lines) {
		return nil, fmt.Errorf("%w: %d log directories, %d study lines", ErrCountMismatch, len(dirs), len(lines))
	}

	out := &Outcome{RunID: d.newRunID()}
	if d.logger != nil {
		d.logger.Info("batch started", "run_id", out.RunID, "experiments", len(dirs), "root", d.cfg.Root)
	}
	for i, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := d.runOne(ctx, out.RunID, dir, lines[i])
		if err != nil {
			issue := d.recordIssue(ctx, out.RunID, dir, err)
			out.Issues = append(out.Issues, issue)
			if !d.cfg.ContinueOnError {
				return out, fmt.Errorf("experiment %s: %w", dir, err)
			}
			continue
		}
		if err := d.persist(ctx, *res); err != nil {
			return out, err
		}
		out.Results = append(out.Results, *res)
	}

	if err := d.writeReports(out.Results); err != nil {
		return out, err
	}
	if d.logger != nil {
		d.logger.Info("batch finished", "run_id", out.RunID, "results", len(out.Results), "issues", len(out.Issues))
	}
	return out, nil
}

func (d *Driver) runOne(ctx context.Context, runID, dir, line string) (*model.ExperimentResult, error) {
	exp, err := ParseStudyLine(line, d.study.TimestampLayout)
	if err != nil {
		return nil, err
	}
	exp.RunID = runID
	exp.ID = dir
	exp.LogDir = filepath.Join(d.cfg.Root, dir)
	return d.runner.Run(ctx, exp)
}

func (d *Driver) persist(ctx context.Context, res model.ExperimentResult) error {
	if d.store != nil {
		if err := d.store.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("save result %s: %w", res.ExperimentID, err)
		}
	}
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, res); err != nil && d.logger != nil {
			d.logger.Warn("result not published", "experiment", res.ExperimentID, "err", err)
		}
	}
	return nil
}

func (d *Driver) recordIssue(ctx context.Context, runID, dir string, err error) model.Issue {
	issue := model.Issue{
		Timestamp:    time.Now().UTC(),
		RunID:        runID,
		ExperimentID: dir,
		Kind:         IssueKind(err),
		Message:      err.Error(),
	}
	if d.logger != nil {
		d.logger.Error("experiment failed", "run_id", runID, "experiment", dir, "kind", issue.Kind, "err", err)
	}
	if d.issues != nil {
		d.issues.Add(issue)
	}
	if d.store != nil {
		if serr := d.store.SaveIssue(ctx, issue); serr != nil && d.logger != nil {
			d.logger.Warn("issue not stored", "experiment", dir, "err", serr)
		}
	}
	return issue
}

func (d *Driver) writeReports(results []model.ExperimentResult) error {
	if d.report.PDFPath != "" {
		if err := report.WritePDF(d.report.PDFPath, results, d.study); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		if d.logger != nil {
			d.logger.Info("report written", "path", d.report.PDFPath)
		}
	}
	if d.report.XLSXPath != "" {
		if err := report.WriteXLSX(d.report.XLSXPath, results); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		if d.logger != nil {
			d.logger.Info("report written", "path", d.report.XLSXPath)
		}
	}
	return nil
}

// IssueKind names the failure class of an aborted experiment.
func IssueKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedLine):
		return "malformed_line"
	case errors.Is(err, ingest.ErrMalformedLog):
		return "malformed_log"
	case errors.Is(err, ingest.ErrLogCount):
		return "log_count"
	case errors.Is(err, detect.ErrUnknownVariant):
		return "unknown_variant"
	case errors.Is(err, engine.ErrTimingInvariant):
		return "timing_invariant"
	case errors.Is(err, engine.ErrInsufficientFreeTime):
		return "insufficient_free_time"
	case errors.Is(err, engine.ErrLengthMismatch):
		return "length_mismatch"
	default:
		return "error"
	}
}
