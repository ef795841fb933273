// Package imagecache downloads card thumbnails, shrinks them and keeps them
// in a content-addressed store.
package imagecache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	httputil "github.com/lepinkainen/smart-url-view/pkg/http"
	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// Defaults for Options.
const (
	DefaultMaxDimension = 400
	DefaultQuality      = 90
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBytes     = 10 * 1024 * 1024
	DefaultMaxPixels    = 40_000_000
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	// ErrUnsupportedFormat is returned for images that cannot be rasterised or
	// re-encoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned for images whose header claims more pixels than
	// Options.MaxPixels.
	ErrTooLarge = errors.New("image dimensions too large")
)

var mimeToExt = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// urlExts are the URL extensions trusted when the content type is unknown.
var urlExts = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true}

// storedExts are the extensions a cached file can have.
var storedExts = []string{"jpg", "jpeg", "png", "gif", "webp"}

// Options configures a Cache.
type Options struct {
	MaxDimension int
	Quality      int
	Timeout      time.Duration
	UserAgent    string
	MaxBytes     int64
	// MaxPixels bounds width*height before a download is decoded.
	MaxPixels int64
	// TempDir holds staging files; empty means os.TempDir.
	TempDir string
}

// Cache downloads and stores card thumbnails.
type Cache struct {
	client httputil.Fetcher
	store  ImageStore
	opts   Options
}

// New creates a Cache. Zero option fields take their defaults.
func New(client httputil.Fetcher, store ImageStore, opts Options) *Cache {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Cache{client: client, store: store, opts: opts}
}

// Store returns the underlying image store.
func (c *Cache) Store() ImageStore {
	return c.store
}

// FetchAndCache returns the public URL of the cached copy of imageURL,
// downloading and shrinking it on first use. pageURL is sent as the referer.
// It returns false when the image cannot be cached for any reason.
func (c *Cache) FetchAndCache(ctx context.Context, imageURL, pageURL string) (string, bool) {
	if imageURL == "" {
		return "", false
	}
	key := cacheKey(imageURL)

	if name, ok := c.lookup(key, urlutils.ExtensionOf(imageURL)); ok {
		slog.Debug("Image cache hit", "url", imageURL, "file", name)
		return c.store.PublicURL(name), true
	}

	headers := map[string]string{"Accept": "image/*"}
	if pageURL != "" {
		headers["Referer"] = pageURL
	}
	resp, err := c.client.Get(ctx, imageURL, httputil.RequestOptions{
		Timeout:      c.opts.Timeout,
		UserAgent:    c.opts.UserAgent,
		Headers:      headers,
		MaxBodyBytes: c.opts.MaxBytes,
	})
	if err != nil {
		slog.Debug("Image download failed", "url", imageURL, "error", err)
		return "", false
	}
	if err := httputil.EnsureStatusOK(resp); err != nil {
		slog.Debug("Image download failed", "url", imageURL, "error", err)
		return "", false
	}
	if len(resp.Body) == 0 {
		slog.Debug("Image download returned empty body", "url", imageURL)
		return "", false
	}

	ext := detectExtension(httputil.GetContentType(resp), imageURL, resp.Body)
	name := key + "." + ext
	if c.store.Exists(name) {
		return c.store.PublicURL(name), true
	}

	data, err := c.stageAndProcess(resp.Body, ext)
	if err != nil {
		slog.Debug("Image processing failed", "url", imageURL, "ext", ext, "error", err)
		return "", false
	}

	if err := c.store.Write(name, data); err != nil {
		slog.Warn("Failed to store cached image", "url", imageURL, "file", name, "error", err)
		return "", false
	}

	slog.Debug("Cached image", "url", imageURL, "file", name, "bytes", len(data))
	return c.store.PublicURL(name), true
}

// lookup checks every extension a cached copy could have been stored under,
// starting with the one suggested by the URL.
func (c *Cache) lookup(key, urlExt string) (string, bool) {
	if urlExts[urlExt] {
		if name := key + "." + urlExt; c.store.Exists(name) {
			return name, true
		}
	}
	for _, ext := range storedExts {
		if ext == urlExt {
			continue
		}
		if name := key + "." + ext; c.store.Exists(name) {
			return name, true
		}
	}
	return "", false
}

// stageAndProcess writes the raw download to a temporary file, then decodes
// and re-encodes it from there. The staging file is always removed.
func (c *Cache) stageAndProcess(raw []byte, ext string) ([]byte, error) {
	tmp, err := os.CreateTemp(c.opts.TempDir, "smart-url-view-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind staging file: %w", err)
	}

	return process(tmp, raw, ext, c.opts)
}

// process decodes r, shrinks it to fit within opts.MaxDimension and encodes
// it for ext. The header is checked against opts.MaxPixels before the pixel
// data is decoded.
func process(r io.ReadSeeker, raw []byte, ext string, opts Options) ([]byte, error) {
	if ext == "svg" {
		return nil, ErrUnsupportedFormat
	}

	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind staging file: %w", err)
	}

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxDimension)
	resized := w != b.Dx() || h != b.Dy()

	img := src
	if resized {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch ext {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "webp":
		if resized {
			return nil, ErrUnsupportedFormat
		}
		return raw, nil
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down to fit a maxDim square, keeping the aspect
// ratio. Images that already fit are returned unchanged.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// detectExtension picks the stored file extension: content type first, then
// the URL extension, then content sniffing, then png.
func detectExtension(contentType, imageURL string, data []byte) string {
	if ext, ok := mimeToExt[httputil.MediaType(contentType)]; ok {
		return ext
	}
	if ext := urlutils.ExtensionOf(imageURL); urlExts[ext] {
		return ext
	}
	if ext, ok := mimeToExt[httputil.MediaType(http.DetectContentType(data))]; ok {
		return ext
	}
	return "png"
}

// cacheKey hashes the image URL exactly as given, query string included.
func cacheKey(imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	return hex.EncodeToString(sum[:])
}
