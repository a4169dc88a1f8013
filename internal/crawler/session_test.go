package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession(CrawlConfig{RootURL: "https://example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, s.Config.Concurrency)
	assert.Equal(t, "example.com", s.Scope.Host)

	_, err = NewSession(CrawlConfig{RootURL: "not a url"})
	assert.Error(t, err)
}

func TestCrawlSession_Discover(t *testing.T) {
	s, err := NewSession(CrawlConfig{SessionID: "fixed", RootURL: "https://example.com/", MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, "fixed", s.ID)

	require.NoError(t, s.Seed())
	assert.ErrorIs(t, s.Discover("http://EXAMPLE.com", "", 1), ErrAlreadyVisited)
	assert.NoError(t, s.Discover("https://example.com/a", "https://example.com/", 1))
	assert.ErrorIs(t, s.Discover("https://example.com/a/", "https://example.com/", 1), ErrAlreadyVisited)
	assert.ErrorIs(t, s.Discover("https://other.com/a", "https://example.com/", 1), ErrOutOfScope)
	assert.ErrorIs(t, s.Discover("https://example.com/deep", "https://example.com/a", 2), ErrDepthExceeded)

	assert.Equal(t, 2, s.Visited.Len())
	assert.Equal(t, 2, s.Frontier.Pending())
	assert.Equal(t, int64(2), s.Stats.Skipped.Load())
	assert.False(t, s.Visited.Contains(Normalize("https://example.com/deep")), "over-depth links must not use an admission")
}

func TestCrawlSession_RediscoveredLinksAreNotSkipped(t *testing.T) {
	s, err := NewSession(CrawlConfig{RootURL: "https://example.com", MaxDepth: 1, QueueSize: 2})
	require.NoError(t, err)

	require.NoError(t, s.Seed())
	require.NoError(t, s.Discover("https://example.com/a", "", 1))
	assert.ErrorIs(t, s.Discover("https://example.com/a", "https://example.com/a", 2), ErrAlreadyVisited)
	assert.ErrorIs(t, s.Discover("https://example.com/", "https://example.com/a", 2), ErrAlreadyVisited)
	assert.Equal(t, int64(0), s.Stats.Skipped.Load())

	assert.ErrorIs(t, s.Discover("https://example.com/b", "", 1), ErrFrontierFull)
	assert.False(t, s.Visited.Contains(Normalize("https://example.com/b")), "a full queue must not burn the admission")
	require.Equal(t, 2, s.Frontier.Pending())
	_, ok := s.Frontier.Pop(context.Background())
	require.True(t, ok)
	assert.NoError(t, s.Discover("https://example.com/b", "", 1))
	assert.Equal(t, int64(1), s.Stats.Skipped.Load())
}

func TestCrawlSession_PageLimitStopsAdmission(t *testing.T) {
	s, err := NewSession(CrawlConfig{RootURL: "https://example.com", MaxDepth: -1, MaxPages: 2})
	require.NoError(t, err)

	require.NoError(t, s.Seed())
	require.NoError(t, s.Discover("https://example.com/1", "", 1))
	assert.ErrorIs(t, s.Discover("https://example.com/2", "", 1), ErrPageLimit)
	assert.False(t, s.Visited.Contains(Normalize("https://example.com/2")))
}

func TestCrawlSession_RecordSuccessCeiling(t *testing.T) {
	s, err := NewSession(CrawlConfig{RootURL: "https://example.com", MaxPages: 1})
	require.NoError(t, err)

	n, ok := s.recordSuccess()
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)

	_, ok = s.recordSuccess()
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Stats.Succeeded.Load())
}
