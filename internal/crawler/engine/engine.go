package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"page-crawler/internal/crawler"
	"page-crawler/pkg/models"
)

// State is the lifecycle of one run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

type Option func(*Engine)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRobots makes workers consult robots.txt before fetching.
func WithRobots(gate *crawler.RobotsGate) Option {
	return func(e *Engine) { e.session.Robots = gate }
}

// Engine owns one crawl session and the worker pool that drives it.
type Engine struct {
	session   *crawler.CrawlSession
	processor *crawler.PageProcessor
	sink      crawler.Sink
	logger    zerolog.Logger

	state atomic.Int32
	ran   atomic.Bool
}

func NewEngine(cfg crawler.CrawlConfig, fetcher crawler.Fetcher, extractor crawler.PageExtractor, sink crawler.Sink, opts ...Option) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("engine: fetcher is required")
	}
	if sink == nil {
		return nil, errors.New("engine: sink is required")
	}

	session, err := crawler.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	engine := &Engine{
		session:   session,
		processor: crawler.NewPageProcessor(fetcher, extractor),
		sink:      sink,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.logger = engine.logger.With().Str("session", session.ID).Logger()
	return engine, nil
}

// Run crawls from the root URL until the frontier is exhausted, the page
// ceiling is hit, a sink fails or ctx is cancelled. The summary is valid in
// every case. An engine runs once.
func (engine *Engine) Run(ctx context.Context) (models.Summary, error) {
	if !engine.ran.CompareAndSwap(false, true) {
		return engine.Summary(), errors.New("engine: already run")
	}

	session := engine.session
	engine.setState(StateRunning)

	if err := session.Seed(); err != nil {
		engine.setState(StateTerminated)
		return engine.Summary(), err
	}

	engine.logger.Info().
		Str("root", session.Config.RootURL).
		Int("workers", session.Config.Concurrency).
		Int("max_depth", session.Config.MaxDepth).
		Int("max_pages", session.Config.MaxPages).
		Msg("crawl started")

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < session.Config.Concurrency; i++ {
		worker := crawler.NewWorker(i, session, engine.processor, engine.sink, engine.logger)
		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-session.Frontier.Closed():
		case <-groupCtx.Done():
		}
		engine.setState(StateDraining)
	}()

	err := group.Wait()
	session.Frontier.Drain()
	<-watchDone
	engine.setState(StateTerminated)

	if err == nil {
		err = ctx.Err()
	}

	summary := engine.Summary()
	event := engine.logger.Info()
	if err != nil {
		event = engine.logger.Warn().Err(err)
	}
	event.
		Int64("attempted", summary.Attempted).
		Int64("succeeded", summary.Succeeded).
		Int64("failed", summary.Failed).
		Int64("skipped", summary.Skipped).
		Int("visited", summary.Visited).
		Msg("crawl finished")

	return summary, err
}

func (engine *Engine) State() State {
	return State(engine.state.Load())
}

func (engine *Engine) Session() *crawler.CrawlSession {
	return engine.session
}

// Visited returns the normalized URLs admitted so far.
func (engine *Engine) Visited() []models.NormalizedURL {
	return engine.session.Visited.Snapshot()
}

func (engine *Engine) Summary() models.Summary {
	return engine.session.Summary(engine.State().String())
}

func (engine *Engine) setState(s State) {
	engine.state.Store(int32(s))
}
