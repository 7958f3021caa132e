package metrics

import (
	"sort"
	"sync"
	"time"

	"nfcexposure/internal/model"
)

// Store keeps the latest result per experiment for the API and the final report.
type Store struct {
	mu        sync.RWMutex
	byExp     map[string]model.ExperimentResult
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byExp:     make(map[string]model.ExperimentResult),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(res model.ExperimentResult) {
	if res.ExperimentID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byExp[res.ExperimentID] = res
	s.updatedAt[res.ExperimentID] = time.Now().UTC()
	if len(s.byExp) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(experimentID string) (model.ExperimentResult, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.byExp[experimentID]
	if !ok {
		return model.ExperimentResult{}, time.Time{}, false
	}
	return res, s.updatedAt[experimentID], true
}

// List returns all results ordered by experiment id, which for timestamped
// log directories is the recording order.
func (s *Store) List() []model.ExperimentResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ExperimentResult, 0, len(s.byExp))
	for _, res := range s.byExp {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExperimentID < out[j].ExperimentID })
	return out
}

func (s *Store) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, ts := range s.updatedAt {
		if oldestID == "" || ts.Before(oldest) {
			oldestID = id
			oldest = ts
		}
	}
	if oldestID != "" {
		delete(s.byExp, oldestID)
		delete(s.updatedAt, oldestID)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byExp = make(map[string]model.ExperimentResult)
	s.updatedAt = make(map[string]time.Time)
}
