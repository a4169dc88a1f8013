package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"page-crawler/pkg/models"
)

const (
	DefaultBatchSize    = 50
	DefaultBatchTimeout = 2 * time.Second
)

// BatchWriter persists a group of records in one go.
type BatchWriter interface {
	SaveBatch(ctx context.Context, batch []models.PageRecord) error
}

// BatchSink buffers records and hands them to a BatchWriter when the buffer
// fills or the flush interval passes. A failed write is sticky: every later
// Emit and Close returns it.
type BatchSink struct {
	writer    BatchWriter
	batchSize int
	logger    zerolog.Logger

	mu     sync.Mutex
	buffer []models.PageRecord
	err    error

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewBatchSink(writer BatchWriter, batchSize int, batchTimeout time.Duration, logger zerolog.Logger) *BatchSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	s := &BatchSink{
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
		buffer:    make([]models.PageRecord, 0, batchSize),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go s.flushLoop(batchTimeout)
	return s
}

func (s *BatchSink) Emit(ctx context.Context, record models.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.batchSize {
		return s.flushLocked(ctx)
	}
	return nil
}

// Close stops the timer and writes whatever is still buffered.
func (s *BatchSink) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.flushLocked(context.Background())
}

func (s *BatchSink) flushLoop(interval time.Duration) {
	defer close(s.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.err == nil {
				_ = s.flushLocked(context.Background())
			}
			s.mu.Unlock()
		}
	}
}

func (s *BatchSink) flushLocked(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}

	if err := s.writer.SaveBatch(ctx, s.buffer); err != nil {
		s.err = errors.Join(errors.New("batch save failed"), err)
		s.logger.Error().Err(err).Int("size", len(s.buffer)).Msg("batch save failed")
		return s.err
	}
	s.logger.Debug().Int("size", len(s.buffer)).Msg("saved batch")
	s.buffer = s.buffer[:0]
	return nil
}
