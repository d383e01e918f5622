// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultFaviconEndpoint is the icon service queried by HTTPSource.
// The single %s is replaced with the hostname.
const DefaultFaviconEndpoint = "https://icons.duckduckgo.com/ip3/%s.ico"

// maxIconBytes bounds a fetched icon.
const maxIconBytes = 1 << 20

//go:embed fallback.svg
var fallbackIcon []byte

// FallbackIcon is returned whenever no icon can be found.
var FallbackIcon = Icon{Data: fallbackIcon, ContentType: "image/svg+xml", Fallback: true}

// ErrNoIcon is returned by a FaviconSource that reached the service but
// got no icon back.
var ErrNoIcon = errors.New("no icon")

// Icon is image bytes plus their media type.
type Icon struct {
	Data        []byte
	ContentType string

	// Fallback is set on FallbackIcon.
	Fallback bool
}

// DataURL renders the icon as a data: URL, ready for an img src.
func (i Icon) DataURL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// FaviconSource fetches the icon for a hostname.
type FaviconSource interface {
	Fetch(ctx context.Context, hostname string) (Icon, error)
}

// HTTPSource fetches icons from an HTTP icon service.
type HTTPSource struct {
	// Endpoint is a format string with one %s for the hostname.
	// Defaults to DefaultFaviconEndpoint.
	Endpoint string

	// Timeout bounds each fetch. Zero means no limit beyond ctx.
	Timeout time.Duration

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Fetch implements FaviconSource.
func (s *HTTPSource) Fetch(ctx context.Context, hostname string) (Icon, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultFaviconEndpoint
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(endpoint, url.PathEscape(hostname)), nil)
	if err != nil {
		return Icon{}, fmt.Errorf("favicon %s: %w", hostname, err)
	}
	response, err := client.Do(request)
	if err != nil {
		return Icon{}, fmt.Errorf("favicon %s: %w", hostname, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Icon{}, fmt.Errorf("favicon %s: %w (status %d)", hostname, ErrNoIcon, response.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, maxIconBytes))
	if err != nil {
		return Icon{}, fmt.Errorf("favicon %s: reading body: %w", hostname, err)
	}
	if len(data) == 0 {
		return Icon{}, fmt.Errorf("favicon %s: %w (empty body)", hostname, ErrNoIcon)
	}
	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Icon{Data: data, ContentType: contentType}, nil
}

// FaviconConfig configures Store.Favicons.
type FaviconConfig struct {
	Source FaviconSource

	// MaxAge is how long a cached icon is served before it is fetched
	// again. Defaults to 24 hours.
	MaxAge time.Duration
}

// Favicons resolves page URLs to icons through a cache in the history
// database.
type Favicons struct {
	store  *Store
	source FaviconSource
	maxAge time.Duration
	logger *slog.Logger
}

// Favicons returns an icon resolver sharing the store's database.
func (s *Store) Favicons(config FaviconConfig) *Favicons {
	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Favicons{
		store:  s,
		source: config.Source,
		maxAge: maxAge,
		logger: s.logger.With("component", "favicons"),
	}
}

// Lookup returns the icon for the page's host. It never fails: any
// problem along the way yields FallbackIcon, except ctx cancellation
// which is reported.
func (f *Favicons) Lookup(ctx context.Context, pageURL string) (Icon, error) {
	hostname := Hostname(pageURL)
	if hostname == "" {
		return FallbackIcon, nil
	}

	icon, fetched, found, err := f.cached(ctx, hostname)
	if err != nil {
		if ctx.Err() != nil {
			return Icon{}, ctx.Err()
		}
		f.logger.Warn("favicon cache read failed", "hostname", hostname, "error", err)
	}
	if found && f.store.clock.Now().Sub(fetched) < f.maxAge {
		return icon, nil
	}
	if f.source == nil {
		if found {
			return icon, nil
		}
		return FallbackIcon, nil
	}

	fresh, err := f.source.Fetch(ctx, hostname)
	if err != nil {
		if ctx.Err() != nil {
			return Icon{}, ctx.Err()
		}
		f.logger.Debug("favicon fetch failed", "hostname", hostname, "error", err)
		if found {
			return icon, nil
		}
		return FallbackIcon, nil
	}
	if err := f.store.putIcon(ctx, hostname, fresh); err != nil {
		f.logger.Warn("favicon cache write failed", "hostname", hostname, "error", err)
	}
	return fresh, nil
}

func (f *Favicons) cached(ctx context.Context, hostname string) (icon Icon, fetched time.Time, found bool, err error) {
	conn, err := f.store.pool.Take(ctx)
	if err != nil {
		return Icon{}, time.Time{}, false, err
	}
	defer f.store.pool.Put(conn)

	var (
		encoding string
		size     int
		data     []byte
	)
	err = sqlitex.Execute(conn,
		`SELECT content_type, encoding, size, data, fetched FROM favicons WHERE hostname = ?`,
		&sqlitex.ExecOptions{
			Args: []any{hostname},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				icon.ContentType = stmt.ColumnText(0)
				encoding = stmt.ColumnText(1)
				size = stmt.ColumnInt(2)
				data = make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, data)
				fetched = time.Unix(0, stmt.ColumnInt64(4))
				return nil
			},
		})
	if err != nil || !found {
		return Icon{}, time.Time{}, false, err
	}
	icon.Data, err = decompress(data, encoding, size)
	if err != nil {
		return Icon{}, time.Time{}, false, err
	}
	return icon, fetched, true, nil
}

func (s *Store) putIcon(ctx context.Context, hostname string, icon Icon) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	stored, encoding := compress(icon.Data)
	return sqlitex.Execute(conn, `
		INSERT INTO favicons (hostname, content_type, encoding, size, data, fetched)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (hostname) DO UPDATE SET
			content_type = excluded.content_type,
			encoding     = excluded.encoding,
			size         = excluded.size,
			data         = excluded.data,
			fetched      = excluded.fetched`,
		&sqlitex.ExecOptions{
			Args: []any{hostname, icon.ContentType, encoding, len(icon.Data), stored, s.clock.Now().UnixNano()},
		})
}

// Hostname extracts the host of a page URL without its port. Anything
// that does not parse, or has no host, yields "".
func Hostname(pageURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
