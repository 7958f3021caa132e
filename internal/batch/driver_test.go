package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nfcexposure/internal/config"
	"nfcexposure/internal/engine"
	"nfcexposure/internal/ingest"
	"nfcexposure/internal/issues"
	"nfcexposure/internal/model"
)

type stubRunner struct {
	fail map[string]error
	seen []model.ExperimentConfig
}

func (s *stubRunner) Run(_ context.Context, exp model.ExperimentConfig) (*model.ExperimentResult, error) {
	s.seen = append(s.seen, exp)
	if err := s.fail[exp.ID]; err != nil {
		return nil, err
	}
	return &model.ExperimentResult{
		RunID:        exp.RunID,
		ExperimentID: exp.ID,
		Variant:      exp.Variant,
		Window:       &model.WindowResult{Task: []float64{1, 0}, Free: []float64{0}},
	}, nil
}

type memStore struct {
	results []model.ExperimentResult
	issues  []model.Issue
}

func (m *memStore) SaveResult(_ context.Context, res model.ExperimentResult) error {
	m.results = append(m.results, res)
	return nil
}

func (m *memStore) SaveIssue(_ context.Context, issue model.Issue) error {
	m.issues = append(m.issues, issue)
	return nil
}

func batchRoot(t *testing.T, ids []string, lines []string) string {
	t.Helper()
	root := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.Mkdir(filepath.Join(root, id), 0o755))
	}
	body := "# start end variant options\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.txt"), []byte(body), 0o644))
	return root
}

func testConfig(root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Batch.Root = root
	cfg.Report.PDFPath = ""
	return cfg
}

func newTestDriver(t *testing.T, cfg *config.Config, runner Runner, is *issues.Store, store ResultStore) *Driver {
	t.Helper()
	d, err := NewDriver(cfg, runner, is, store, nil, nil)
	require.NoError(t, err)
	d.newRunID = func() string { return "run-test" }
	return d
}

func TestDriverRunsExperimentsInOrder(t *testing.T) {
	ids := []string{"20240101090000_01", "20240101100000_02", "20240101110000_03"}
	root := batchRoot(t, ids, []string{
		"09:00:00 09:15:00 A60",
		"10:00:00 10:15:00 A60'",
		"11:00:00 11:15:00 F nfc_off_free",
	})
	runner := &stubRunner{}
	store := &memStore{}
	d := newTestDriver(t, testConfig(root), runner, issues.NewStore(10), store)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-test", out.RunID)
	require.Len(t, out.Results, 3)
	require.Len(t, store.results, 3)
	require.Empty(t, out.Issues)

	require.Len(t, runner.seen, 3)
	for i, exp := range runner.seen {
		require.Equal(t, ids[i], exp.ID)
		require.Equal(t, filepath.Join(root, ids[i]), exp.LogDir)
		require.Equal(t, "run-test", exp.RunID)
	}
	require.Equal(t, model.VariantA60Always, runner.seen[1].Variant)
	require.True(t, runner.seen[2].Options.Has(model.OptionNFCOffFree))
}

func TestDriverCountMismatch(t *testing.T) {
	root := batchRoot(t, []string{"20240101090000_01", "20240101100000_02"}, []string{"09:00:00 09:15:00 A60"})
	runner := &stubRunner{}
	d := newTestDriver(t, testConfig(root), runner, nil, nil)
	_, err := d.Run(context.Background())
	require.True(t, errors.Is(err, ErrCountMismatch))
	require.Empty(t, runner.seen)
}

func TestDriverHaltsOnFirstFailure(t *testing.T) {
	ids := []string{"20240101090000_01", "20240101100000_02", "20240101110000_03"}
	root := batchRoot(t, ids, []string{
		"09:00:00 09:15:00 A60",
		"10:00:00 10:15:00 A60",
		"11:00:00 11:15:00 A60",
	})
	runner := &stubRunner{fail: map[string]error{
		ids[1]: fmt.Errorf("%w: bad ordering", engine.ErrTimingInvariant),
	}}
	is := issues.NewStore(10)
	store := &memStore{}
	d := newTestDriver(t, testConfig(root), runner, is, store)

	out, err := d.Run(context.Background())
	require.True(t, errors.Is(err, engine.ErrTimingInvariant))
	require.Contains(t, err.Error(), ids[1])
	require.Len(t, runner.seen, 2)
	require.Len(t, out.Results, 1)
	require.Len(t, out.Issues, 1)
	require.Equal(t, "timing_invariant", out.Issues[0].Kind)
	require.Equal(t, 1, is.Len())
	require.Len(t, store.issues, 1)
}

func TestDriverContinuesWhenConfigured(t *testing.T) {
	ids := []string{"20240101090000_01", "20240101100000_02", "20240101110000_03"}
	root := batchRoot(t, ids, []string{
		"09:00:00 09:15:00 A60 always_on",
		"10:00:00 10:15:00 A60",
		"11:00:00 11:15:00 A60",
	})
	runner := &stubRunner{fail: map[string]error{
		ids[2]: fmt.Errorf("%w: Alpha.csv row 3", ingest.ErrMalformedLog),
	}}
	cfg := testConfig(root)
	cfg.Batch.ContinueOnError = true
	is := issues.NewStore(10)
	d := newTestDriver(t, cfg, runner, is, nil)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.Equal(t, ids[1], out.Results[0].ExperimentID)
	require.Len(t, out.Issues, 2)
	require.Equal(t, "malformed_line", out.Issues[0].Kind)
	require.Equal(t, "malformed_log", out.Issues[1].Kind)
	require.Len(t, runner.seen, 2)
	require.Equal(t, 2, is.Len())
}

func TestDriverWritesReports(t *testing.T) {
	ids := []string{"20240101090000_01"}
	root := batchRoot(t, ids, []string{"09:00:00 09:15:00 A60"})
	cfg := testConfig(root)
	out := t.TempDir()
	cfg.Report.PDFPath = filepath.Join(out, "result.pdf")
	cfg.Report.XLSXPath = filepath.Join(out, "result.xlsx")
	d := newTestDriver(t, cfg, &stubRunner{}, nil, nil)

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	pdf, err := os.ReadFile(cfg.Report.PDFPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	info, err := os.Stat(cfg.Report.XLSXPath)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestDriverWithEngine(t *testing.T) {
	id := "20240101100000_01"
	root := batchRoot(t, []string{id}, []string{"10:00:00 10:00:04 A60"})
	var alpha, bravo strings.Builder
	for s := 0; s <= 10; s++ {
		field := ""
		if s == 1 {
			field = "sel_res=60"
		}
		fmt.Fprintf(&alpha, "10:00:%02d,%s,,\n", s, field)
		fmt.Fprintf(&bravo, "10:00:%02d,,,\n", s)
	}
	dir := filepath.Join(root, id)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Alpha.csv"), []byte(alpha.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bravo.csv"), []byte(bravo.String()), 0o644))

	cfg := testConfig(root)
	cfg.Study.TaskSecs = 4
	cfg.Study.FreeSecs = 3
	cfg.Study.DeviceCount = 2
	cfg.Study.DeviceLabels = []string{"Alpha", "Bravo"}
	eng := engine.NewEngine(cfg.Study, ingest.NewLoader(cfg.Study, 2), nil, nil, nil)
	d := newTestDriver(t, cfg, eng, nil, nil)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	res := out.Results[0]
	require.Equal(t, "run-test", res.RunID)
	require.Equal(t, []float64{0, 1, 0, 0}, res.Window.Task)
	require.Equal(t, []float64{0, 0, 0}, res.Window.Free)
	require.Equal(t, 1, res.TaskSummary.Attackable)
	require.Equal(t, 11, res.GridSeconds)
}
