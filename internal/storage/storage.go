package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v4/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driver() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", string(d))
	}
}

// rebind rewrites "?" placeholders into the dialect's form.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const pagesSchema = `
CREATE TABLE IF NOT EXISTS pages (
	session_id      TEXT NOT NULL,
	url             TEXT NOT NULL,
	h1              TEXT NOT NULL,
	first_paragraph TEXT NOT NULL,
	outgoing_links  TEXT NOT NULL,
	image_urls      TEXT NOT NULL,
	crawled_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, url)
)`

type Storage struct {
	db      *sql.DB
	dialect Dialect
}

func NewStorage(db *sql.DB, dialect Dialect) *Storage {
	return &Storage{db: db, dialect: dialect}
}

// Open connects, pings and creates the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Storage, error) {
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := NewStorage(db, dialect)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pagesSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CountPages returns how many pages a session stored.
func (s *Storage) CountPages(ctx context.Context, sessionID string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT COUNT(*) FROM pages WHERE session_id = ?`), sessionID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) DB() *sql.DB { return s.db }

func (s *Storage) Close() error {
	return s.db.Close()
}
