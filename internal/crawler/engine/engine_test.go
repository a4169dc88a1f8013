package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-crawler/internal/crawler"
	"page-crawler/internal/storage"
	"page-crawler/pkg/models"
)

// sitePages maps a URL to the links its page contains.
type sitePages map[string][]string

// fakeSite serves sitePages without a network. Unknown URLs fail with 404.
type fakeSite struct {
	pages sitePages

	mu      sync.Mutex
	fetched map[string]int
	delay   time.Duration
}

func newFakeSite(pages sitePages) *fakeSite {
	return &fakeSite{pages: pages, fetched: make(map[string]int)}
}

func (f *fakeSite) Fetch(ctx context.Context, url string) (string, int, error) {
	f.mu.Lock()
	f.fetched[url]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}

	links, ok := f.pages[url]
	if !ok {
		return "", http.StatusNotFound, &crawler.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><h1>%s</h1><main><p>about %s</p></main>", url, url)
	for _, link := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, link)
	}
	b.WriteString("</body></html>")
	return b.String(), http.StatusOK, nil
}

func (f *fakeSite) fetchCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.fetched))
	for k, v := range f.fetched {
		out[k] = v
	}
	return out
}

func sorted(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func newTestEngine(t *testing.T, cfg crawler.CrawlConfig, fetcher crawler.Fetcher, sink crawler.Sink) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, fetcher, crawler.NewHTMLExtractor(), sink)
	require.NoError(t, err)
	return engine
}

func TestEngine_MaxDepthZeroEmitsOnlyRoot(t *testing.T) {
	site := newFakeSite(sitePages{
		"https://example.com": {"/a", "/b", "/c"},
		"https://example.com/a": nil,
		"https://example.com/b": nil,
		"https://example.com/c": nil,
	})
	sink := storage.NewMemorySink()
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com", MaxDepth: 0, Concurrency: 3}, site, sink)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com"}, sink.URLs())
	assert.Equal(t, int64(1), summary.Succeeded)
	assert.Equal(t, int64(3), summary.Skipped)
	assert.Equal(t, "terminated", summary.State)
	assert.Equal(t, StateTerminated, engine.State())
}

func TestEngine_CycleTerminatesAndEmitsEachPageOnce(t *testing.T) {
	site := newFakeSite(sitePages{
		"https://example.com/a": {"https://example.com/b", "https://example.com/a/"},
		"https://example.com/b": {"http://EXAMPLE.com/a", "/b"},
	})
	sink := storage.NewMemorySink()
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com/a", MaxDepth: -1, Concurrency: 4}, site, sink)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, sorted(sink.URLs()))
	for url, n := range site.fetchCounts() {
		assert.Equal(t, 1, n, "fetched %s more than once", url)
	}
	assert.Equal(t, []models.NormalizedURL{"example.com/a", "example.com/b"}, engine.Visited())
	assert.Equal(t, 2, summary.Visited)
}

func TestEngine_MaxPagesCapsRecords(t *testing.T) {
	pages := sitePages{}
	for i := 0; i < 50; i++ {
		var links []string
		for j := 0; j < 50; j++ {
			links = append(links, fmt.Sprintf("https://example.com/p%d", j))
		}
		pages[fmt.Sprintf("https://example.com/p%d", i)] = links
	}
	pages["https://example.com"] = pages["https://example.com/p0"]

	for _, workers := range []int{1, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			sink := storage.NewMemorySink()
			engine := newTestEngine(t, crawler.CrawlConfig{
				RootURL:     "https://example.com",
				MaxDepth:    -1,
				MaxPages:    7,
				Concurrency: workers,
			}, newFakeSite(pages), sink)

			summary, err := engine.Run(context.Background())
			require.NoError(t, err)
			assert.LessOrEqual(t, len(sink.Records()), 7)
			assert.LessOrEqual(t, engine.Session().Frontier.Pushed(), 7)
			assert.Equal(t, int64(len(sink.Records())), summary.Succeeded)
		})
	}
}

func TestEngine_ScopeAndFailures(t *testing.T) {
	site := newFakeSite(sitePages{
		"https://example.com": {"/ok", "/missing", "https://other.com/x", "mailto:me@example.com"},
		"https://example.com/ok": nil,
	})
	sink := storage.NewMemorySink()
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com", MaxDepth: 5, Concurrency: 2}, site, sink)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com", "https://example.com/ok"}, sorted(sink.URLs()))
	assert.Equal(t, int64(3), summary.Attempted)
	assert.Equal(t, int64(2), summary.Succeeded)
	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, int64(2), summary.Skipped)
	assert.NotContains(t, site.fetchCounts(), "https://other.com/x")
}

func TestEngine_RecordContents(t *testing.T) {
	site := newFakeSite(sitePages{"https://example.com": {"/a"}})
	sink := storage.NewMemorySink()
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com", MaxDepth: 0}, site, sink)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com", records[0].H1)
	assert.Equal(t, "about https://example.com", records[0].FirstParagraph)
	assert.Equal(t, []string{"https://example.com/a"}, records[0].OutgoingLinks)
}

func TestEngine_SinkErrorIsFatal(t *testing.T) {
	site := newFakeSite(sitePages{
		"https://example.com":   {"/a"},
		"https://example.com/a": nil,
	})
	sink := storage.NewMemorySink()
	sink.Err = errors.New("database unavailable")
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com", MaxDepth: -1}, site, sink)

	summary, err := engine.Run(context.Background())
	var sinkErr *crawler.SinkError
	require.True(t, errors.As(err, &sinkErr))
	assert.ErrorIs(t, err, sink.Err)
	assert.Equal(t, int64(0), summary.Succeeded)
	assert.Equal(t, StateTerminated, engine.State())
}

func TestEngine_Cancellation(t *testing.T) {
	pages := sitePages{}
	for i := 0; i < 200; i++ {
		pages[fmt.Sprintf("https://example.com/%d", i)] = []string{fmt.Sprintf("/%d", i+1)}
	}
	pages["https://example.com"] = []string{"/0"}
	site := newFakeSite(pages)
	site.delay = 10 * time.Millisecond

	sink := storage.NewMemorySink()
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com", MaxDepth: -1, Concurrency: 2}, site, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	summary, err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, summary.Succeeded, int64(200))
	assert.Equal(t, StateTerminated, engine.State())
}

func TestEngine_RunsOnce(t *testing.T) {
	site := newFakeSite(sitePages{"https://example.com": nil})
	engine := newTestEngine(t, crawler.CrawlConfig{RootURL: "https://example.com"}, site, storage.NewMemorySink())

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	assert.Error(t, err)
}

func TestEngine_RateLimitIsGlobal(t *testing.T) {
	site := newFakeSite(sitePages{
		"https://example.com":   {"/1", "/2", "/3"},
		"https://example.com/1": nil,
		"https://example.com/2": nil,
		"https://example.com/3": nil,
	})
	engine := newTestEngine(t, crawler.CrawlConfig{
		RootURL:           "https://example.com",
		MaxDepth:          -1,
		Concurrency:       4,
		RequestsPerSecond: 20,
		Burst:             1,
	}, site, storage.NewMemorySink())

	start := time.Now()
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Succeeded)
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestEngine_RespectsRobots(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /secret\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<h1>Home</h1><a href="/public">p</a><a href="/secret">s</a>`))
		default:
			_, _ = w.Write([]byte(`<h1>` + r.URL.Path + `</h1>`))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := crawler.NewHTTPFetcher(crawler.HTTPFetcherOptions{Client: server.Client()})
	sink := storage.NewMemorySink()
	engine, err := NewEngine(
		crawler.CrawlConfig{RootURL: server.URL + "/", MaxDepth: -1, Concurrency: 2},
		fetcher, nil, sink,
		WithRobots(crawler.NewRobotsGate(server.Client(), "PageCrawler")),
	)
	require.NoError(t, err)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/", server.URL + "/public"}, sorted(sink.URLs()))
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNewEngine_Validation(t *testing.T) {
	site := newFakeSite(nil)
	_, err := NewEngine(crawler.CrawlConfig{RootURL: "https://example.com"}, nil, nil, storage.NewMemorySink())
	assert.Error(t, err)
	_, err = NewEngine(crawler.CrawlConfig{RootURL: "https://example.com"}, site, nil, nil)
	assert.Error(t, err)
	_, err = NewEngine(crawler.CrawlConfig{RootURL: ""}, site, nil, storage.NewMemorySink())
	assert.Error(t, err)
}
