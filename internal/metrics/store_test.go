package metrics

import (
	"testing"
	"time"

	"nfcexposure/internal/model"
)

func TestStoreListSortedByExperiment(t *testing.T) {
	s := NewStore(10)
	s.Update(model.ExperimentResult{ExperimentID: "20240102090000_02"})
	s.Update(model.ExperimentResult{ExperimentID: "20240101090000_01"})
	s.Update(model.ExperimentResult{})
	list := s.List()
	if len(list) != 2 {
		t.Fatalf("results: %d", len(list))
	}
	if list[0].ExperimentID != "20240101090000_01" {
		t.Fatalf("not sorted: %s", list[0].ExperimentID)
	}
	if _, _, ok := s.Get("20240102090000_02"); !ok {
		t.Fatalf("expected stored result")
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	s.Update(model.ExperimentResult{ExperimentID: "a"})
	time.Sleep(time.Millisecond)
	s.Update(model.ExperimentResult{ExperimentID: "b"})
	time.Sleep(time.Millisecond)
	s.Update(model.ExperimentResult{ExperimentID: "c"})
	if _, _, ok := s.Get("a"); ok {
		t.Fatalf("oldest result not evicted")
	}
	if len(s.List()) != 2 {
		t.Fatalf("limit not applied")
	}
	s.Clear()
	if len(s.List()) != 0 {
		t.Fatalf("clear failed")
	}
}

func TestObserveBeforeInit(t *testing.T) {
	ObserveWindow(WindowTask, 50)
	ObserveGrid(16, 1500)
}
