package crawler

import (
	"net/url"
	"strings"

	"page-crawler/pkg/models"
)

// Normalize turns a URL into its deduplication key: host and path without the
// scheme, lower-cased, with exactly one trailing slash removed. It never fails;
// input that does not parse is reduced by hand to whatever host/path survives.
func Normalize(raw string) models.NormalizedURL {
	var hostPath string
	if u, err := url.Parse(raw); err == nil {
		hostPath = u.Host + u.EscapedPath()
	} else {
		hostPath = roughHostPath(raw)
	}

	hostPath = strings.TrimSuffix(hostPath, "/")
	return models.NormalizedURL(strings.ToLower(hostPath))
}

func roughHostPath(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if strings.HasPrefix(s, "//") {
		s = s[2:]
	}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		if slash := strings.Index(s, "/"); slash < 0 || at < slash {
			s = s[at+1:]
		}
	}
	return s
}
