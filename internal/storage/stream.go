package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"page-crawler/pkg/models"
)

// JSONLinesSink writes one JSON object per record.
type JSONLinesSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLinesSink writes to w; if w is also an io.Closer, Close closes it.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	s := &JSONLinesSink{enc: json.NewEncoder(w)}
	s.enc.SetEscapeHTML(false)
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *JSONLinesSink) Emit(_ context.Context, record models.PageRecord) error {
	if record.OutgoingLinks == nil {
		record.OutgoingLinks = []string{}
	}
	if record.ImageURLs == nil {
		record.ImageURLs = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(record)
}

func (s *JSONLinesSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

var csvHeader = []string{"url", "h1", "first_paragraph", "outgoing_link_urls", "image_urls"}

// CSVSink writes a header row followed by one row per record. URL lists are
// joined with ";".
type CSVSink struct {
	mu          sync.Mutex
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *CSVSink) Emit(_ context.Context, record models.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.wroteHeader {
		if err := s.w.Write(csvHeader); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	row := []string{
		record.URL,
		record.H1,
		record.FirstParagraph,
		strings.Join(record.OutgoingLinks, ";"),
		strings.Join(record.ImageURLs, ";"),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.wroteHeader {
		if err := s.w.Write(csvHeader); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
