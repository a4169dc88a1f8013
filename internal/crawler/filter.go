package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ScopeFilter keeps a crawl on the host of its root URL.
type ScopeFilter struct {
	Host string
}

func NewScopeFilter(rootURL string) (*ScopeFilter, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("could not extract host from %s", rootURL)
	}

	return &ScopeFilter{Host: host}, nil
}

// InScope reports whether link is an http(s) URL on the filter's host.
func (filter ScopeFilter) InScope(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	return strings.EqualFold(u.Hostname(), filter.Host)
}
