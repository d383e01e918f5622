// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/gazeflow/lib/clock"
	"github.com/bureau-foundation/gazeflow/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS visits (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	last_visit   INTEGER NOT NULL,
	visit_count  INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS visits_last_visit ON visits (last_visit DESC);

CREATE TABLE IF NOT EXISTS favicons (
	hostname      TEXT PRIMARY KEY,
	content_type  TEXT NOT NULL,
	encoding      TEXT NOT NULL,
	size          INTEGER NOT NULL,
	data          BLOB NOT NULL,
	fetched       INTEGER NOT NULL
);
`

// Visit is one visited URL.
type Visit struct {
	URL        string
	Title      string
	LastVisit  time.Time
	VisitCount int
}

// Query selects visits for Search.
type Query struct {
	// Text, when set, keeps visits whose URL or title contains it,
	// ignoring case.
	Text string

	// MaxResults bounds how many of the most recent visits are
	// considered. Defaults to 100.
	MaxResults int

	// ExcludedPrefixes drops visits whose URL starts with any of them.
	// Exclusion applies after MaxResults, so fewer results may come
	// back.
	ExcludedPrefixes []string
}

// StoreConfig configures OpenStore.
type StoreConfig struct {
	// Path is the database file. Its directory must exist.
	Path string

	// Clock stamps visits recorded without a time.
	Clock clock.Clock

	Logger *slog.Logger
}

// Store is the visit history. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// OpenStore opens or creates the history database.
func OpenStore(config StoreConfig) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	storeClock := config.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   config.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	return &Store{
		pool:   pool,
		clock:  storeClock,
		logger: logger.With("component", "history"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Record adds a visit. Visiting a known URL again bumps its count and
// replaces its title and time; a visit older than the stored one only
// bumps the count.
func (s *Store) Record(ctx context.Context, visit Visit) error {
	if visit.URL == "" {
		return errors.New("history store: visit has no URL")
	}
	if visit.LastVisit.IsZero() {
		visit.LastVisit = s.clock.Now()
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history store: record: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO visits (url, title, last_visit, visit_count) VALUES (?, ?, ?, 1)
		ON CONFLICT (url) DO UPDATE SET
			visit_count = visit_count + 1,
			title       = CASE WHEN excluded.last_visit >= last_visit THEN excluded.title ELSE title END,
			last_visit  = max(last_visit, excluded.last_visit)`,
		&sqlitex.ExecOptions{
			Args: []any{visit.URL, visit.Title, visit.LastVisit.UnixNano()},
		})
	if err != nil {
		return fmt.Errorf("history store: record %s: %w", visit.URL, err)
	}
	s.logger.Debug("visit recorded", "url", visit.URL)
	return nil
}

// Search returns visits newest first.
func (s *Store) Search(ctx context.Context, query Query) ([]Visit, error) {
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history store: search: %w", err)
	}
	defer s.pool.Put(conn)

	var visits []Visit
	err = sqlitex.Execute(conn, `
		SELECT url, title, last_visit, visit_count FROM visits
		WHERE ?1 = '' OR instr(lower(url), lower(?1)) > 0 OR instr(lower(title), lower(?1)) > 0
		ORDER BY last_visit DESC, url
		LIMIT ?2`,
		&sqlitex.ExecOptions{
			Args: []any{query.Text, maxResults},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				visit := Visit{
					URL:        stmt.ColumnText(0),
					Title:      stmt.ColumnText(1),
					LastVisit:  time.Unix(0, stmt.ColumnInt64(2)).UTC(),
					VisitCount: stmt.ColumnInt(3),
				}
				if !excluded(visit.URL, query.ExcludedPrefixes) {
					visits = append(visits, visit)
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history store: search: %w", err)
	}
	return visits, nil
}

func excluded(url string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// TruncateURL shortens url to maxLength characters followed by "...".
// URLs within the limit are returned unchanged.
func TruncateURL(url string, maxLength int) string {
	runes := []rune(url)
	if maxLength <= 0 || len(runes) <= maxLength {
		return url
	}
	return string(runes[:maxLength]) + "..."
}
