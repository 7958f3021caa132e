package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

const logExt = ".csv"

type DeviceLog struct {
	Label   string
	Path    string
	Records []model.DetectionRecord
}

func (d DeviceLog) First() time.Time {
	return d.Records[0].Timestamp
}

func (d DeviceLog) Last() time.Time {
	return d.Records[len(d.Records)-1].Timestamp
}

type Loader struct {
	parser  *Parser
	study   config.StudyConfig
	labels  map[string]struct{}
	workers int
}

func NewLoader(study config.StudyConfig, workers int) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{
		parser:  NewParser(study.SignalFields, study.TimestampLayout),
		study:   study,
		labels:  buildLabelSet(study.DeviceLabels),
		workers: workers,
	}
}

func buildLabelSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Load reads every device log of one experiment directory, sorted by label.
func (l *Loader) Load(ctx context.Context, dir string) ([]DeviceLog, error) {
	paths, err := l.listLogs(dir)
	if err != nil {
		return nil, err
	}
	logs := make([]DeviceLog, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			logs[i] = DeviceLog{Label: labelOf(path), Path: path, Records: records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (l *Loader) LoadFile(path string) ([]model.DetectionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := l.parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no records", ErrMalformedLog, filepath.Base(path))
	}
	return records, nil
}

func (l *Loader) listLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), logExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if l.labels != nil {
			if _, ok := l.labels[labelOf(path)]; !ok {
				return nil, fmt.Errorf("%w: unknown device label %q in %s", ErrLogCount, labelOf(path), dir)
			}
		}
		paths = append(paths, path)
	}
	if len(paths) != l.study.DeviceCount {
		return nil, fmt.Errorf("%w: %d device logs required, found %d in %s", ErrLogCount, l.study.DeviceCount, len(paths), dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func labelOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), logExt)
}
