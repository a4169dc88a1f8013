package storage

import (
	"context"
	"io"

	"github.com/schollz/progressbar/v3"

	"page-crawler/internal/crawler"
	"page-crawler/pkg/models"
)

// ProgressSink ticks a progress bar for every record it forwards.
type ProgressSink struct {
	next crawler.Sink
	bar  *progressbar.ProgressBar
}

// NewProgressSink draws to out. maxPages <= 0 shows a spinner.
func NewProgressSink(next crawler.Sink, maxPages int, out io.Writer) *ProgressSink {
	max := int64(-1)
	if maxPages > 0 {
		max = int64(maxPages)
	}
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &ProgressSink{next: next, bar: bar}
}

func (s *ProgressSink) Emit(ctx context.Context, record models.PageRecord) error {
	if err := s.next.Emit(ctx, record); err != nil {
		return err
	}
	_ = s.bar.Add(1)
	return nil
}

// Close finishes the bar. The wrapped sink is left for its owner to close.
func (s *ProgressSink) Close() error {
	return s.bar.Finish()
}
