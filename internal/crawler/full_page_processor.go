package crawler

import (
	"context"
	"errors"

	"page-crawler/pkg/models"
)

// PageProcessor fetches one frontier entry and extracts its record.
type PageProcessor struct {
	Fetcher   Fetcher
	Extractor PageExtractor
}

func NewPageProcessor(fetcher Fetcher, extractor PageExtractor) *PageProcessor {
	if extractor == nil {
		extractor = NewHTMLExtractor()
	}
	return &PageProcessor{Fetcher: fetcher, Extractor: extractor}
}

// Process returns a *FetchError when the page cannot be retrieved.
func (p *PageProcessor) Process(ctx context.Context, entry models.FrontierEntry) (models.PageRecord, error) {
	body, statusCode, err := p.Fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{URL: entry.URL, StatusCode: statusCode, Err: err}
		}
		return models.PageRecord{}, err
	}
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return models.PageRecord{}, &FetchError{URL: entry.URL, StatusCode: statusCode, Err: errors.New("unexpected status")}
	}

	return p.Extractor.Extract(body, entry.URL), nil
}
