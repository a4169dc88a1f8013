package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultUserAgent    = "PageCrawler/1.0 (+https://github.com/page-crawler)"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = int64(10 * 1024 * 1024)
)

var ErrNotHTML = errors.New("response is not HTML")

// FetchError is returned for any page that could not be retrieved: transport
// failures (StatusCode 0), non-2xx responses and non-HTML bodies.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the request could succeed.
func (e *FetchError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return !errors.Is(e.Err, ErrNotHTML)
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

type HTTPFetcherOptions struct {
	Client          *http.Client
	UserAgent       string
	Timeout         time.Duration
	MaxBodyBytes    int64
	Retries         uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPFetcher is the network Fetcher. With Retries > 0 it retries temporary
// failures with exponential backoff; the crawl core itself never retries.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	retries      uint64
	initial      time.Duration
	maxInterval  time.Duration
}

func NewHTTPFetcher(opts HTTPFetcherOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}

	return &HTTPFetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		retries:      opts.Retries,
		initial:      opts.InitialInterval,
		maxInterval:  opts.MaxInterval,
	}
}

func (p *HTTPFetcher) Client() *http.Client { return p.client }

func (p *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (string, int, error) {
	if p.retries == 0 {
		return p.fetchOnce(ctx, targetURL)
	}

	var (
		body   string
		status int
	)
	op := func() error {
		var err error
		body, status, err = p.fetchOnce(ctx, targetURL)
		if err == nil {
			return nil
		}
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.Temporary() {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.maxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, p.retries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{URL: targetURL, StatusCode: status, Err: err}
		}
		return "", status, err
	}
	return body, status, nil
}

func (p *HTTPFetcher) fetchOnce(ctx context.Context, targetURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", 0, &FetchError{URL: targetURL, Err: err}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, &FetchError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, &FetchError{URL: targetURL, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return "", resp.StatusCode, &FetchError{URL: targetURL, Err: fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))}
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return "", resp.StatusCode, &FetchError{URL: targetURL, Err: err}
	}
	body, err := io.ReadAll(io.LimitReader(reader, p.maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, &FetchError{URL: targetURL, Err: err}
	}
	return string(body), resp.StatusCode, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// Missing content types are treated as HTML.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
