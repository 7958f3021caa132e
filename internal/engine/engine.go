package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nfcexposure/internal/config"
	"nfcexposure/internal/detect"
	"nfcexposure/internal/ingest"
	"nfcexposure/internal/metrics"
	"nfcexposure/internal/model"
	"nfcexposure/internal/normalize"
)

var ErrTimingInvariant = errors.New("engine: timing invariant violated")

// LogSource loads every device log of one experiment directory.
type LogSource interface {
	Load(ctx context.Context, dir string) ([]ingest.DeviceLog, error)
}

// Engine runs single experiments end to end. It holds no per-experiment state
// and may be reused across a batch.
type Engine struct {
	logger   *slog.Logger
	study    config.StudyConfig
	source   LogSource
	registry *detect.Registry
	splitter *Splitter
	metrics  *metrics.Store
}

func NewEngine(study config.StudyConfig, source LogSource, registry *detect.Registry, metricsStore *metrics.Store, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = detect.NewRegistry()
	}
	return &Engine{
		logger:   logger,
		study:    study,
		source:   source,
		registry: registry,
		splitter: NewSplitter(study),
		metrics:  metricsStore,
	}
}

// Run loads the experiment's logs and computes its windows. Experiments of an
// excluded variant return a result with Excluded set and no window.
func (e *Engine) Run(ctx context.Context, exp model.ExperimentConfig) (*model.ExperimentResult, error) {
	started := time.Now()
	res, err := e.run(ctx, exp)
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case res.Excluded:
		outcome = metrics.OutcomeExcluded
	}
	metrics.ObserveExperiment(outcome, time.Since(started))
	return res, err
}

func (e *Engine) run(ctx context.Context, exp model.ExperimentConfig) (*model.ExperimentResult, error) {
	if exp.Variant.Excluded() {
		if e.logger != nil {
			e.logger.Info("experiment excluded", "experiment", exp.ID, "variant", string(exp.Variant))
		}
		res := &model.ExperimentResult{
			RunID:        exp.RunID,
			ExperimentID: exp.ID,
			Variant:      exp.Variant,
			Options:      exp.Options.List(),
			Excluded:     true,
			CompletedAt:  time.Now().UTC(),
		}
		e.record(*res)
		return res, nil
	}
	detector, err := e.registry.Lookup(exp.Variant)
	if err != nil {
		return nil, err
	}
	logs, err := e.source.Load(ctx, exp.LogDir)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(exp, logs, detector)
}

// Evaluate runs the timeline pipeline over already loaded logs.
func (e *Engine) Evaluate(exp model.ExperimentConfig, logs []ingest.DeviceLog, detector model.Detector) (*model.ExperimentResult, error) {
	if len(logs) != e.study.DeviceCount {
		return nil, fmt.Errorf("%w: %d device logs required, got %d", ingest.ErrLogCount, e.study.DeviceCount, len(logs))
	}
	logMin, logMax, err := logBounds(logs)
	if err != nil {
		return nil, err
	}

	minTime := exp.TaskStartTime
	if exp.Options.Has(model.OptionModifyTaskStart) {
		minTime = logMin
	}
	maxTime := logMax
	switchTime := exp.TaskEndTime

	if logMin.After(minTime) || !minTime.Before(switchTime) || !switchTime.Before(logMax) {
		return nil, fmt.Errorf("%w: log start time (%s) <= task start time (%s) < task end time (%s) < log end time (%s)",
			ErrTimingInvariant,
			normalize.FormatClock(logMin), normalize.FormatClock(minTime),
			normalize.FormatClock(switchTime), normalize.FormatClock(logMax))
	}
	freeAvail := logMax.Sub(switchTime)
	freeNeed := time.Duration(e.study.FreeSecs) * time.Second
	if freeAvail <= freeNeed {
		return nil, fmt.Errorf("%w: free time must be longer than %s, log ends %s after task end (%s -> %s)",
			ErrInsufficientFreeTime, freeNeed, freeAvail,
			normalize.FormatClock(switchTime), normalize.FormatClock(logMax))
	}

	grid, err := normalize.NewGrid(minTime, maxTime)
	if err != nil {
		return nil, err
	}
	series := make([][]bool, 0, len(logs))
	for _, l := range logs {
		s := normalize.Normalize(l.Records, grid, detector)
		if e.logger != nil {
			e.logger.Debug("device normalized", "experiment", exp.ID, "device", l.Label, "records", len(l.Records))
		}
		series = append(series, s)
	}
	metrics.ObserveGrid(len(series), grid.Len())
	fused, err := Aggregate(series...)
	if err != nil {
		return nil, err
	}

	window, err := e.splitter.Split(fused, grid.Index(switchTime), exp.Options)
	if err != nil {
		return nil, err
	}
	res := &model.ExperimentResult{
		RunID:        exp.RunID,
		ExperimentID: exp.ID,
		Variant:      exp.Variant,
		Options:      exp.Options.List(),
		Window:       &window,
		TaskSummary:  Summarize(window.Task),
		FreeSummary:  Summarize(window.Free),
		Devices:      len(logs),
		GridSeconds:  grid.Len(),
		CompletedAt:  time.Now().UTC(),
	}
	metrics.ObserveWindow(metrics.WindowTask, res.TaskSummary.Percent)
	metrics.ObserveWindow(metrics.WindowFree, res.FreeSummary.Percent)
	if e.logger != nil {
		e.logger.Info("experiment summary",
			"experiment", exp.ID,
			"variant", string(exp.Variant),
			"task", FormatSummary(res.TaskSummary),
			"free", FormatSummary(res.FreeSummary),
		)
	}
	e.record(*res)
	return res, nil
}

func (e *Engine) record(res model.ExperimentResult) {
	if e.metrics != nil {
		e.metrics.Update(res)
	}
}

func logBounds(logs []ingest.DeviceLog) (time.Time, time.Time, error) {
	var lo, hi time.Time
	for i, l := range logs {
		if len(l.Records) == 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %s has no records", ingest.ErrMalformedLog, l.Label)
		}
		first, last := l.First(), l.Last()
		if i == 0 || first.Before(lo) {
			lo = first
		}
		if i == 0 || last.After(hi) {
			hi = last
		}
	}
	return lo, hi, nil
}

// FormatSummary renders a window summary as "attackable/total (pct%, minutes min)".
func FormatSummary(s model.Summary) string {
	return fmt.Sprintf("%3d/%d (%5.1f%%, %.1f min)", s.Attackable, s.Total, s.Percent, s.Minutes)
}
