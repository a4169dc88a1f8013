package storage

import (
	"context"
	"sync"

	"page-crawler/pkg/models"
)

// MemorySink keeps records in memory. Setting Err makes every Emit fail.
type MemorySink struct {
	mu      sync.Mutex
	records []models.PageRecord
	Err     error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, record models.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *MemorySink) SaveBatch(ctx context.Context, batch []models.PageRecord) error {
	for _, record := range batch {
		if err := s.Emit(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemorySink) Records() []models.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// URLs returns the URL of every stored record in arrival order.
func (s *MemorySink) URLs() []string {
	records := s.Records()
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}

func (s *MemorySink) Close() error { return nil }
