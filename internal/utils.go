package internal

import (
	"sort"
	"sync"

	"page-crawler/pkg/models"
)

// VisitedSet records every normalized URL admitted during one crawl run.
// It only grows.
type VisitedSet struct {
	mu sync.Mutex
	v  map[models.NormalizedURL]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{v: make(map[models.NormalizedURL]struct{})}
}

// TryAdmit records u and reports true only for the first caller to present it.
func (s *VisitedSet) TryAdmit(u models.NormalizedURL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.v[u]; seen {
		return false
	}
	s.v[u] = struct{}{}
	return true
}

func (s *VisitedSet) Contains(u models.NormalizedURL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.v[u]
	return seen
}

func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.v)
}

// Snapshot returns the admitted keys in lexical order.
func (s *VisitedSet) Snapshot() []models.NormalizedURL {
	s.mu.Lock()
	out := make([]models.NormalizedURL, 0, len(s.v))
	for u := range s.v {
		out = append(out, u)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
