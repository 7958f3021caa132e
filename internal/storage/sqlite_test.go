package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "results.db")
	store, err := NewStore(config.StorageConfig{Enabled: true, Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	done := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res := model.ExperimentResult{
		RunID:        "run-1",
		ExperimentID: "20240501100000_01",
		Variant:      model.VariantF,
		Options:      []string{"nfc_off_free"},
		Window:       &model.WindowResult{Task: []float64{1, 0, 0.3}, Free: []float64{0.3, 0.3}},
		TaskSummary:  model.Summary{Attackable: 1, Total: 3},
		FreeSummary:  model.Summary{Attackable: 0, Total: 2},
		CompletedAt:  done,
	}
	excluded := model.ExperimentResult{
		RunID:        "run-1",
		ExperimentID: "20240501110000_02",
		Variant:      model.VariantA60Always,
		Excluded:     true,
		CompletedAt:  done,
	}
	for _, r := range []model.ExperimentResult{excluded, res} {
		if err := store.SaveResult(ctx, r); err != nil {
			t.Fatalf("save result: %v", err)
		}
	}
	if err := store.SaveIssue(ctx, model.Issue{Timestamp: done, RunID: "run-1", ExperimentID: "x", Kind: "timing", Message: "bad"}); err != nil {
		t.Fatalf("save issue: %v", err)
	}

	list, err := store.ListResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("results: %d", len(list))
	}
	got := list[0]
	if got.ExperimentID != res.ExperimentID || got.Variant != model.VariantF || got.Excluded {
		t.Fatalf("unexpected first result: %+v", got)
	}
	if got.Window == nil || len(got.Window.Task) != 3 || got.Window.Task[2] != 0.3 {
		t.Fatalf("window mismatch: %+v", got.Window)
	}
	if len(got.Options) != 1 || got.Options[0] != "nfc_off_free" {
		t.Fatalf("options mismatch: %v", got.Options)
	}
	if !got.CompletedAt.Equal(done) {
		t.Fatalf("completed_at: %s", got.CompletedAt)
	}
	if !list[1].Excluded || list[1].Window != nil {
		t.Fatalf("expected excluded result without window")
	}
	if other, _ := store.ListResults(ctx, "run-2"); len(other) != 0 {
		t.Fatalf("expected no results for other run")
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Enabled: false})
	if err != nil || store != nil {
		t.Fatalf("expected nil store, got %v %v", store, err)
	}
	if _, err := NewStore(config.StorageConfig{Enabled: true, Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
