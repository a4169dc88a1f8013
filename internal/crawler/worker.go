package crawler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"page-crawler/pkg/models"
)

// Worker is one member of the crawl pool. Workers share everything through
// their session and own only the entry they are processing.
type Worker struct {
	ID        int
	session   *CrawlSession
	processor *PageProcessor
	sink      Sink
	logger    zerolog.Logger
}

func NewWorker(id int, session *CrawlSession, processor *PageProcessor, sink Sink, logger zerolog.Logger) *Worker {
	return &Worker{
		ID:        id,
		session:   session,
		processor: processor,
		sink:      sink,
		logger:    logger.With().Int("worker", id).Logger(),
	}
}

// Run pulls entries until the frontier is exhausted or ctx is done. The only
// error it returns is a *SinkError.
func (w *Worker) Run(ctx context.Context) error {
	frontier := w.session.Frontier
	for {
		entry, ok := frontier.Pop(ctx)
		if !ok {
			return nil
		}
		err := w.handle(ctx, entry)
		frontier.Done()
		if err != nil {
			return err
		}
	}
}

func (w *Worker) handle(ctx context.Context, entry models.FrontierEntry) error {
	s := w.session
	log := w.logger.With().Str("url", entry.URL).Int("depth", entry.Depth).Logger()

	if ctx.Err() != nil {
		return nil
	}
	if s.Robots != nil && !s.Robots.Allowed(ctx, entry.URL) {
		s.Stats.Skipped.Add(1)
		log.Debug().Msg("disallowed by robots.txt")
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		log.Debug().Err(err).Msg("rate limiter interrupted")
		return nil
	}

	s.Stats.Attempted.Add(1)
	log.Debug().Msg("crawling")

	record, err := w.processor.Process(ctx, entry)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.Stats.Failed.Add(1)
		log.Warn().Err(err).Msg("fetch failed")
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	n, ok := s.recordSuccess()
	if !ok {
		s.Frontier.Drain()
		return nil
	}
	if err := w.sink.Emit(ctx, record); err != nil {
		s.Stats.Succeeded.Add(-1)
		s.Stats.Failed.Add(1)
		log.Error().Err(err).Msg("sink failed")
		return &SinkError{URL: entry.URL, Err: err}
	}
	if s.Config.MaxPages > 0 && n >= int64(s.Config.MaxPages) {
		if dropped := s.Frontier.Drain(); dropped > 0 {
			log.Info().Int("dropped", dropped).Msg("page limit reached, discarding pending entries")
		}
		return nil
	}

	queued := 0
	for _, link := range record.OutgoingLinks {
		err := s.Discover(link, entry.URL, entry.Depth+1)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrAlreadyVisited), errors.Is(err, ErrOutOfScope), errors.Is(err, ErrUnnormalizable):
		default:
			log.Debug().Err(err).Str("link", link).Msg("link dropped")
		}
	}
	log.Debug().Int("links", len(record.OutgoingLinks)).Int("queued", queued).Msg("page done")
	return nil
}
