package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"page-crawler/pkg/models"
)

// PageSink writes batches of page records for one crawl session. A URL is
// stored once per session; earlier sessions keep their rows.
type PageSink struct {
	*Storage
	SessionID string
}

func (s *PageSink) SaveBatch(ctx context.Context, batch []models.PageRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`
		INSERT INTO pages (url, session_id, h1, first_paragraph, outgoing_links, image_urls, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, url) DO NOTHING`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range batch {
		links, err := encodeList(p.OutgoingLinks)
		if err != nil {
			return err
		}
		images, err := encodeList(p.ImageURLs)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.URL, s.SessionID, p.H1, p.FirstParagraph, links, images, now); err != nil {
			return fmt.Errorf("save page %s: %w", p.URL, err)
		}
	}

	return tx.Commit()
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
