package models

// NormalizedURL is the deduplication key of a page: host + path, lower-cased,
// scheme removed and a single trailing slash stripped.
type NormalizedURL string

type FrontierEntry struct {
	URL             string
	Normalized      NormalizedURL
	Depth           int
	OriginatingPage string
}

type PageRecord struct {
	URL            string   `json:"url"`
	H1             string   `json:"h1"`
	FirstParagraph string   `json:"first_paragraph"`
	OutgoingLinks  []string `json:"outgoing_links"`
	ImageURLs      []string `json:"image_urls"`
}

// Summary reports the outcome of one crawl run.
type Summary struct {
	SessionID string `json:"session_id"`
	Attempted int64  `json:"attempted"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
	Skipped   int64  `json:"skipped"`
	Visited   int    `json:"visited"`
	State     string `json:"state"`
}
