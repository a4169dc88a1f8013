package crawler

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"page-crawler/internal"
	"page-crawler/pkg/models"
)

var (
	ErrOutOfScope     = errors.New("link is outside the crawl scope")
	ErrUnnormalizable = errors.New("link has no usable host or path")
	ErrAlreadyVisited = errors.New("link already admitted")
)

// CrawlConfig is fixed for the lifetime of a run.
type CrawlConfig struct {
	SessionID         string
	RootURL           string
	MaxDepth          int // negative: unlimited
	MaxPages          int // zero or less: unlimited
	Concurrency       int
	RequestsPerSecond float64 // zero or less: unlimited
	Burst             int
	QueueSize         int // zero or less: unbounded
}

// Stats are the run counters. Attempted counts pages handed to the fetcher.
type Stats struct {
	Attempted atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Skipped   atomic.Int64
}

// CrawlSession holds all shared state of one crawl run.
type CrawlSession struct {
	ID       string
	Config   CrawlConfig
	Visited  *internal.VisitedSet
	Frontier *Frontier
	Limiter  *RateLimiter
	Scope    *ScopeFilter
	Robots   *RobotsGate
	Stats    Stats
}

func NewSession(cfg CrawlConfig) (*CrawlSession, error) {
	scope, err := NewScopeFilter(cfg.RootURL)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	return &CrawlSession{
		ID:       cfg.SessionID,
		Config:   cfg,
		Visited:  internal.NewVisitedSet(),
		Frontier: NewFrontier(cfg.MaxDepth, cfg.MaxPages, cfg.QueueSize),
		Limiter:  NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		Scope:    scope,
	}, nil
}

// Seed admits the root URL at depth zero.
func (s *CrawlSession) Seed() error {
	if err := s.Discover(s.Config.RootURL, "", 0); err != nil {
		return fmt.Errorf("seed %s: %w", s.Config.RootURL, err)
	}
	return nil
}

// Discover runs a link through the admission pipeline: scope, normalization,
// then the visited set and frontier limits under one lock. Scope and limit
// rejections count as skipped; links already seen do not.
func (s *CrawlSession) Discover(link, originatingPage string, depth int) error {
	if !s.Scope.InScope(link) {
		s.Stats.Skipped.Add(1)
		return ErrOutOfScope
	}

	key := Normalize(link)
	if key == "" {
		return ErrUnnormalizable
	}

	err := s.Frontier.Admit(models.FrontierEntry{
		URL:             link,
		Normalized:      key,
		Depth:           depth,
		OriginatingPage: originatingPage,
	}, s.Visited)
	if err != nil {
		s.countRejection(err)
	}
	return err
}

// recordSuccess reserves a slot under MaxPages. It reports false once the
// ceiling is already taken.
func (s *CrawlSession) recordSuccess() (n int64, ok bool) {
	n = s.Stats.Succeeded.Add(1)
	if s.Config.MaxPages > 0 && n > int64(s.Config.MaxPages) {
		s.Stats.Succeeded.Add(-1)
		return n - 1, false
	}
	return n, true
}

func (s *CrawlSession) Summary(state string) models.Summary {
	return models.Summary{
		SessionID: s.ID,
		Attempted: s.Stats.Attempted.Load(),
		Succeeded: s.Stats.Succeeded.Load(),
		Failed:    s.Stats.Failed.Load(),
		Skipped:   s.Stats.Skipped.Load(),
		Visited:   s.Visited.Len(),
		State:     state,
	}
}

func (s *CrawlSession) countRejection(err error) {
	if errors.Is(err, ErrFrontierClosed) || errors.Is(err, ErrAlreadyVisited) {
		return
	}
	s.Stats.Skipped.Add(1)
}
