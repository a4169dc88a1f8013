package crawler

import (
	"context"
	"fmt"

	"page-crawler/pkg/models"
)

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (html string, statusCode int, err error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, int, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, int, error) {
	return f(ctx, url)
}

// PageExtractor turns a fetched page into a record. It must not fail.
type PageExtractor interface {
	Extract(html, pageURL string) models.PageRecord
}

// Sink receives completed records, once per page and in no particular order.
type Sink interface {
	Emit(ctx context.Context, record models.PageRecord) error
}

// SinkError aborts a crawl.
type SinkError struct {
	URL string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink rejected %s: %v", e.URL, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
