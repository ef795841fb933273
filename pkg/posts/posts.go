// Package posts resolves site URLs to published posts stored in SQLite.
package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lepinkainen/smart-url-view/pkg/database"
	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// StatusPublish is the only status Resolve returns.
const StatusPublish = "publish"

// MaxExcerptLength is the number of code points kept for generated excerpts.
const MaxExcerptLength = 150

// ErrNotFound is returned by Get when no post has the given ID.
var ErrNotFound = errors.New("post not found")

// Post is a post as seen by the card renderer.
type Post struct {
	ID           int64
	URL          string
	Title        string
	Excerpt      string
	Content      string
	ThumbnailURL string
	Status       string
	Type         string
	ModifiedAt   time.Time

	// Filled in by Resolve.
	SiteName string
}

// Resolver looks up the published post behind a site URL. It returns nil and
// no error when nothing matches.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*Post, error)
}

// Store keeps posts in a SQLite table.
type Store struct {
	db       *database.Database
	siteName string
	strip    *bluemonday.Policy
}

var _ Resolver = (*Store)(nil)

// NewStore creates the posts table if needed. siteName is reported on every
// resolved post.
func NewStore(ctx context.Context, db *database.Database, siteName string) (*Store, error) {
	s := &Store{db: db, siteName: siteName, strip: bluemonday.StrictPolicy()}

	schema := `
		CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY,
			url TEXT NOT NULL,
			url_key TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			excerpt TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'publish',
			type TEXT NOT NULL DEFAULT 'post',
			modified_at INTEGER NOT NULL
		);
	`
	if err := db.ExecuteSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize posts table: %w", err)
	}
	return s, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Upsert inserts or replaces a post, keyed by ID.
func (s *Store) Upsert(ctx context.Context, p Post) error {
	return upsert(ctx, s.db.DB(), p)
}

func upsert(ctx context.Context, db execer, p Post) error {
	if p.URL == "" {
		return fmt.Errorf("post %d has no URL", p.ID)
	}
	if p.Status == "" {
		p.Status = StatusPublish
	}
	if p.Type == "" {
		p.Type = "post"
	}
	if p.ModifiedAt.IsZero() {
		p.ModifiedAt = time.Now()
	}

	// a zero ID lets SQLite assign one
	var id any = p.ID
	if p.ID == 0 {
		id = nil
	}

	query := `
		INSERT OR REPLACE INTO posts (id, url, url_key, title, excerpt, content, thumbnail_url, status, type, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		id, p.URL, urlKey(p.URL), p.Title, p.Excerpt, p.Content, p.ThumbnailURL,
		p.Status, p.Type, p.ModifiedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert post %d: %w", p.ID, err)
	}
	return nil
}

// Get returns the post with the given ID regardless of status.
func (s *Store) Get(ctx context.Context, id int64) (*Post, error) {
	p, err := s.scanOne(s.db.DB().QueryRowContext(ctx, selectPost+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Resolve returns the published post for rawURL. Query string, fragment and
// trailing slash are ignored when matching.
func (s *Store) Resolve(ctx context.Context, rawURL string) (*Post, error) {
	row := s.db.DB().QueryRowContext(ctx, selectPost+` WHERE url_key = ? AND status = ?`, urlKey(rawURL), StatusPublish)
	p, err := s.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("No published post for URL", "url", rawURL)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Excerpt == "" {
		p.Excerpt = s.excerptFromContent(p.Content)
	}
	if p.ThumbnailURL == "" {
		p.ThumbnailURL = firstImage(p.Content)
	}
	if p.ThumbnailURL != "" {
		if resolved, err := urlutils.ResolveURL(p.URL, p.ThumbnailURL); err == nil {
			p.ThumbnailURL = resolved
		}
	}
	p.SiteName = s.siteName
	return p, nil
}

// Count returns the number of stored posts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

const selectPost = `SELECT id, url, title, excerpt, content, thumbnail_url, status, type, modified_at FROM posts`

func (s *Store) scanOne(row *sql.Row) (*Post, error) {
	var p Post
	var modified int64
	err := row.Scan(&p.ID, &p.URL, &p.Title, &p.Excerpt, &p.Content, &p.ThumbnailURL, &p.Status, &p.Type, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read post: %w", err)
	}
	p.ModifiedAt = time.Unix(modified, 0).UTC()
	return &p, nil
}

// excerptFromContent strips markup, collapses whitespace and truncates.
func (s *Store) excerptFromContent(content string) string {
	text := html.UnescapeString(s.strip.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= MaxExcerptLength {
		return text
	}
	return string([]rune(text)[:MaxExcerptLength]) + "..."
}

// firstImage returns the src of the first img element in content.
func firstImage(content string) string {
	if !strings.Contains(content, "<img") && !strings.Contains(content, "<IMG") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// urlKey normalises a URL for lookup.
func urlKey(rawURL string) string {
	return strings.TrimRight(urlutils.StripQuery(strings.TrimSpace(rawURL)), "/")
}
