// Package app wires the card pipeline together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lepinkainen/smart-url-view/internal/config"
	"github.com/lepinkainen/smart-url-view/pkg/card"
	"github.com/lepinkainen/smart-url-view/pkg/database"
	"github.com/lepinkainen/smart-url-view/pkg/dbinterfaces"
	"github.com/lepinkainen/smart-url-view/pkg/extract"
	httputil "github.com/lepinkainen/smart-url-view/pkg/http"
	"github.com/lepinkainen/smart-url-view/pkg/imagecache"
	"github.com/lepinkainen/smart-url-view/pkg/metrics"
	"github.com/lepinkainen/smart-url-view/pkg/opengraph"
	"github.com/lepinkainen/smart-url-view/pkg/posts"
	"github.com/lepinkainen/smart-url-view/pkg/rediscache"
	"github.com/lepinkainen/smart-url-view/pkg/transform"
	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// HTMLCache is a fragment cache backend that can report on itself.
type HTMLCache interface {
	transform.Cache
	dbinterfaces.StatsProvider
}

// Stats is the cache overview shown by the CLI and the API.
type Stats struct {
	HTML   dbinterfaces.CacheStats `json:"html"`
	Images imagecache.Stats        `json:"images"`
	Posts  int64                   `json:"posts"`
}

// App holds the constructed services.
type App struct {
	Config      *config.Config
	Transformer *transform.Transformer
	Posts       *posts.Store
	Images      *imagecache.FileStore
	Metrics     *metrics.Metrics

	htmlCache HTMLCache
	postsDB   *database.Database
	closers   []io.Closer
	pingers   []func(context.Context) error
}

// New builds every service described by cfg. reg receives the pipeline
// metrics; pass nil to disable them.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx, reg); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to release resources", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, reg prometheus.Registerer) error {
	cfg := a.Config
	var err error

	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	if err := a.openHTMLCache(ctx); err != nil {
		return err
	}

	a.postsDB, err = database.NewDatabase(database.Config{Path: cfg.Posts.Path})
	if err != nil {
		return fmt.Errorf("failed to open posts database: %w", err)
	}
	a.closers = append(a.closers, a.postsDB)
	a.pingers = append(a.pingers, func(ctx context.Context) error { return a.postsDB.DB().PingContext(ctx) })

	a.Posts, err = posts.NewStore(ctx, a.postsDB, cfg.Site.Name)
	if err != nil {
		return err
	}

	client := httputil.NewClient(&httputil.ClientConfig{
		Timeout:            cfg.HTTP.Timeout,
		UserAgent:          cfg.HTTP.UserAgent,
		Headers:            map[string]string{},
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
	})

	a.Images, err = imagecache.NewFileStore(cfg.Images.Dir, cfg.Images.BaseURL)
	if err != nil {
		return err
	}
	images := imagecache.New(client, a.Images, imagecache.Options{
		MaxDimension: cfg.Images.MaxDimension,
		Quality:      cfg.Images.Quality,
		Timeout:      cfg.HTTP.Timeout,
	})

	var override fs.FS
	if cfg.Templates.Dir != "" {
		override = os.DirFS(cfg.Templates.Dir)
	}
	renderer, err := card.NewRenderer(override)
	if err != nil {
		return err
	}

	a.Transformer, err = transform.New(transform.Deps{
		Extractor:   extract.New(cfg.Site.URL),
		Renderer:    renderer,
		Cache:       a.htmlCache,
		Metadata:    opengraph.NewFetcher(client, cfg.HTTP.Timeout),
		Posts:       a.Posts,
		Images:      images,
		Metrics:     a.Metrics,
		ImagePolicy: urlutils.ImagePolicy{StrictHTTPS: cfg.Images.StrictHTTPS},
		SiteName:    cfg.Site.Name,
	})
	if err != nil {
		return err
	}

	return nil
}

func (a *App) openHTMLCache(ctx context.Context) error {
	switch a.Config.Cache.Backend {
	case config.BackendRedis:
		rc := rediscache.New(a.Config.Redis.Addr, transform.CachePrefix)
		if err := rc.Ping(ctx); err != nil {
			// every lookup becomes a miss until Redis is reachable
			slog.Warn("Redis is not reachable", "addr", a.Config.Redis.Addr, "error", err)
		}
		a.htmlCache = rc
		a.closers = append(a.closers, rc)
		a.pingers = append(a.pingers, rc.Ping)
		return nil

	default:
		db, err := database.NewDatabase(database.Config{Path: a.Config.Cache.Path})
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		a.closers = append(a.closers, db)

		cache, err := database.NewCache(ctx, db, database.DefaultCacheTable)
		if err != nil {
			return err
		}
		a.htmlCache = cache
		return nil
	}
}

// Transform runs the transformer with the configured settings.
func (a *App) Transform(ctx context.Context, content string) string {
	return a.Transformer.Transform(ctx, content, a.Config.Settings)
}

// Stats collects HTML cache, image cache and post counts.
func (a *App) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.HTML, err = a.htmlCache.Stats(ctx); err != nil {
		return stats, err
	}
	if stats.Images, err = a.Images.Stats(); err != nil {
		return stats, fmt.Errorf("failed to read image cache: %w", err)
	}
	if stats.Posts, err = a.Posts.Count(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// ClearHTML removes cached card fragments. Cached images are kept.
func (a *App) ClearHTML(ctx context.Context) (int64, error) {
	return a.Transformer.ClearHTMLCache(ctx)
}

// ClearImages removes every cached image file.
func (a *App) ClearImages() (int, error) {
	n, err := a.Images.Clear()
	if err != nil {
		return n, fmt.Errorf("failed to clear image cache: %w", err)
	}
	slog.Info("Cleared image cache", "files", n)
	return n, nil
}

// ClearAll empties both caches.
func (a *App) ClearAll(ctx context.Context) (int64, int, error) {
	html, err := a.ClearHTML(ctx)
	if err != nil {
		return 0, 0, err
	}
	images, err := a.ClearImages()
	return html, images, err
}

// CleanupExpired purges expired fragments when the backend needs it. Redis
// expires keys on its own.
func (a *App) CleanupExpired(ctx context.Context) (int64, error) {
	if c, ok := a.htmlCache.(dbinterfaces.CleanupProvider); ok {
		return c.CleanupExpired(ctx)
	}
	return 0, nil
}

// Ping checks every backing store.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	for _, ping := range a.pingers {
		errs = append(errs, ping(ctx))
	}
	return errors.Join(errs...)
}

// Close releases databases and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
