package issues

import (
	"sync"
	"time"

	"nfcexposure/internal/model"
)

// Store is a bounded buffer of experiments that failed during a batch run.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Issue
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(issue model.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, issue)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = issue
}

func (s *Store) List(limit int) []model.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Issue, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Issue, 0)
	for _, is := range s.buf {
		if !is.Timestamp.Before(ts) {
			out = append(out, is)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
