// Package transform rewrites candidate URLs in HTML content into link cards.
//
// Each URL found by the extractor is classified as internal or external,
// looked up in the HTML fragment cache and, on a miss, rendered from post data
// or Open Graph metadata. Every failure degrades to a simpler card or leaves
// the original markup in place; Transform never returns an error.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/smart-url-view/internal/config"
	"github.com/lepinkainen/smart-url-view/pkg/card"
	"github.com/lepinkainen/smart-url-view/pkg/extract"
	"github.com/lepinkainen/smart-url-view/pkg/metrics"
	"github.com/lepinkainen/smart-url-view/pkg/opengraph"
	"github.com/lepinkainen/smart-url-view/pkg/posts"
	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// CachePrefix namespaces every HTML fragment cache key.
const CachePrefix = "smart_url_view_"

// Cache stores rendered card fragments.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// MetadataFetcher returns Open Graph data for a page, or nil.
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) *opengraph.Data
}

// ImageCacher downloads a thumbnail and returns its cached public URL.
type ImageCacher interface {
	FetchAndCache(ctx context.Context, imageURL, pageURL string) (string, bool)
}

// Deps are the collaborators of a Transformer. Extractor and Renderer are
// required; a nil Cache disables fragment caching, a nil Posts resolves no
// posts and a nil Images keeps remote thumbnail URLs.
type Deps struct {
	Extractor   *extract.Extractor
	Renderer    *card.Renderer
	Cache       Cache
	Metadata    MetadataFetcher
	Posts       posts.Resolver
	Images      ImageCacher
	Metrics     *metrics.Metrics
	ImagePolicy urlutils.ImagePolicy

	// SiteName is shown on internal cards for URLs without a published post.
	SiteName string
}

// Transformer turns URLs in content into cards.
type Transformer struct {
	deps Deps
}

// New creates a Transformer.
func New(deps Deps) (*Transformer, error) {
	if deps.Extractor == nil {
		return nil, errors.New("transform: extractor is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("transform: renderer is required")
	}
	return &Transformer{deps: deps}, nil
}

// Transform returns content with every enabled candidate URL replaced by its
// card. Content without candidates is returned unchanged.
func (t *Transformer) Transform(ctx context.Context, content string, settings config.Settings) string {
	if content == "" || (!settings.ExternalEnabled && !settings.InternalEnabled) {
		return content
	}
	t.deps.Metrics.IncTransform()

	// identical URLs in one pass share a card
	rendered := make(map[string]string)

	return t.deps.Extractor.Rewrite(content, settings.AllBlocks, func(m extract.Match) string {
		if out, ok := rendered[m.URL]; ok {
			return out
		}
		out, ok := t.replace(ctx, m, settings)
		if ok {
			rendered[m.URL] = out
		}
		return out
	})
}

// replace returns the card for m, or the original span and false when the
// URL is left alone.
func (t *Transformer) replace(ctx context.Context, m extract.Match, settings config.Settings) (string, bool) {
	if !urlutils.IsValidURL(m.URL) {
		slog.Debug("Leaving invalid URL untouched", "url", m.URL, "pattern", m.Pattern)
		return m.Span, false
	}

	if t.IsInternal(m.URL) {
		if !settings.InternalEnabled {
			return m.Span, false
		}
		return t.internalCard(ctx, m.URL, settings), true
	}

	if !settings.ExternalEnabled {
		return m.Span, false
	}
	return t.externalCard(ctx, m.URL, settings), true
}

// IsInternal reports whether rawURL belongs to the configured site.
func (t *Transformer) IsInternal(rawURL string) bool {
	return urlutils.IsInternal(rawURL, t.deps.Extractor.SiteURL())
}

// RenderCard returns the card for a single URL regardless of the class
// switches in settings.
func (t *Transformer) RenderCard(ctx context.Context, rawURL string, settings config.Settings) string {
	if t.IsInternal(rawURL) {
		return t.internalCard(ctx, rawURL, settings)
	}
	return t.externalCard(ctx, rawURL, settings)
}

// internalCard and externalCard run on a context detached from the caller's
// cancellation. Lookups and fetches are bounded by their own timeouts, and a
// client going away must not turn a card into a cached fallback.
func (t *Transformer) internalCard(ctx context.Context, rawURL string, settings config.Settings) string {
	caller := ctx
	ctx = context.WithoutCancel(ctx)

	var post *posts.Post
	if t.deps.Posts != nil {
		p, err := t.deps.Posts.Resolve(ctx, rawURL)
		if err != nil {
			slog.Warn("Failed to resolve post", "url", rawURL, "error", err)
			t.deps.Metrics.IncFailure(metrics.FailurePost)
		} else {
			post = p
		}
	}

	key := t.HTMLCacheKey(rawURL, settings, post)
	if out, ok := t.lookup(ctx, key); ok {
		return out
	}

	var out string
	if post == nil {
		out = t.deps.Renderer.RenderSimple(rawURL, t.siteName(rawURL), false)
		t.deps.Metrics.IncCard(metrics.ClassInternal, metrics.VariantSimple)
	} else {
		title := post.Title
		if title == "" {
			title = rawURL
		}
		siteName := post.SiteName
		if siteName == "" {
			siteName = t.siteName(rawURL)
		}
		out = t.deps.Renderer.Render(card.Model{
			URL:         rawURL,
			Title:       title,
			Description: post.Excerpt,
			ImageURL:    t.thumbnail(ctx, post.ThumbnailURL, rawURL),
			SiteName:    siteName,
		})
		t.deps.Metrics.IncCard(metrics.ClassInternal, metrics.VariantFull)
	}

	t.store(ctx, key, out, settings, post == nil && caller.Err() != nil)
	return out
}

func (t *Transformer) externalCard(ctx context.Context, rawURL string, settings config.Settings) string {
	caller := ctx
	ctx = context.WithoutCancel(ctx)

	key := t.HTMLCacheKey(rawURL, settings, nil)
	if out, ok := t.lookup(ctx, key); ok {
		return out
	}

	var data *opengraph.Data
	if t.deps.Metadata != nil {
		data = t.deps.Metadata.Fetch(ctx, rawURL)
	}

	var out string
	if data == nil {
		t.deps.Metrics.IncFailure(metrics.FailureMetadata)
		out = t.deps.Renderer.RenderSimple(rawURL, urlutils.Host(rawURL), settings.ExternalBlank)
		t.deps.Metrics.IncCard(metrics.ClassExternal, metrics.VariantSimple)
	} else {
		out = t.deps.Renderer.Render(card.Model{
			URL:         rawURL,
			Title:       data.Title,
			Description: data.Description,
			ImageURL:    t.thumbnail(ctx, data.Image, rawURL),
			SiteName:    data.SiteName,
			TargetBlank: settings.ExternalBlank,
		})
		t.deps.Metrics.IncCard(metrics.ClassExternal, metrics.VariantFull)
	}

	t.store(ctx, key, out, settings, data == nil && caller.Err() != nil)
	return out
}

// thumbnail normalizes rawImage and swaps it for the cached copy. When caching
// fails the remote URL is kept and the card hides it if it does not load.
func (t *Transformer) thumbnail(ctx context.Context, rawImage, pageURL string) string {
	imageURL := urlutils.NormalizeImageURL(rawImage, pageURL, t.deps.ImagePolicy)
	if imageURL == "" || t.deps.Images == nil {
		return imageURL
	}
	if cached, ok := t.deps.Images.FetchAndCache(ctx, imageURL, pageURL); ok {
		return cached
	}
	t.deps.Metrics.IncFailure(metrics.FailureImage)
	return imageURL
}

func (t *Transformer) siteName(rawURL string) string {
	if t.deps.SiteName != "" {
		return t.deps.SiteName
	}
	return urlutils.Host(rawURL)
}

// HTMLCacheKey derives the fragment cache key for rawURL. Everything that
// changes the rendered card is part of the key: the URL, its class, the new
// tab switch, the image policy, and the post ID and modification time.
func (t *Transformer) HTMLCacheKey(rawURL string, settings config.Settings, post *posts.Post) string {
	var b strings.Builder
	b.WriteString(rawURL)
	if t.IsInternal(rawURL) {
		fmt.Fprintf(&b, "|internal|site=%s", t.deps.SiteName)
	} else {
		fmt.Fprintf(&b, "|external|blank=%t", settings.ExternalBlank)
	}
	fmt.Fprintf(&b, "|https=%t", t.deps.ImagePolicy.StrictHTTPS)
	if post != nil {
		fmt.Fprintf(&b, "|post=%d@%d", post.ID, post.ModifiedAt.Unix())
	}

	sum := sha256.Sum256([]byte(b.String()))
	return CachePrefix + hex.EncodeToString(sum[:16])
}

// lookup reads the fragment cache. Cache errors count as misses.
func (t *Transformer) lookup(ctx context.Context, key string) (string, bool) {
	if t.deps.Cache == nil {
		return "", false
	}
	out, ok, err := t.deps.Cache.Get(ctx, key)
	if err != nil {
		slog.Warn("HTML cache lookup failed", "key", key, "error", err)
		t.deps.Metrics.IncCacheLookup(metrics.ResultError)
		return "", false
	}
	if !ok {
		t.deps.Metrics.IncCacheLookup(metrics.ResultMiss)
		return "", false
	}
	t.deps.Metrics.IncCacheLookup(metrics.ResultHit)
	return out, true
}

// store caches out. skip is set for fallback cards built after the caller
// gave up, which may reflect the cancellation rather than the URL.
func (t *Transformer) store(ctx context.Context, key, out string, settings config.Settings, skip bool) {
	if t.deps.Cache == nil {
		return
	}
	if skip {
		slog.Debug("Not caching fallback card after cancellation", "key", key)
		return
	}
	if err := t.deps.Cache.Set(ctx, key, out, settings.CacheTTL()); err != nil {
		slog.Warn("Failed to store card in HTML cache", "key", key, "error", err)
	}
}

// ClearHTMLCache removes every cached card fragment and returns how many were
// deleted.
func (t *Transformer) ClearHTMLCache(ctx context.Context) (int64, error) {
	if t.deps.Cache == nil {
		return 0, nil
	}
	n, err := t.deps.Cache.DeleteByPrefix(ctx, CachePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to clear HTML cache: %w", err)
	}
	slog.Info("Cleared HTML cache", "entries", n)
	return n, nil
}

// Extractor returns the extractor the transformer scans content with.
func (t *Transformer) Extractor() *extract.Extractor {
	return t.deps.Extractor
}
