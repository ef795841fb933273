// Package opengraph fetches and parses Open Graph metadata for link cards.
package opengraph

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	httputil "github.com/lepinkainen/smart-url-view/pkg/http"
	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// Fetcher handles OpenGraph metadata fetching with bounded concurrency
type Fetcher struct {
	client    httputil.Fetcher
	timeout   time.Duration
	semaphore chan struct{}
}

// NewFetcher creates a new OpenGraph fetcher
func NewFetcher(client httputil.Fetcher, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:    client,
		timeout:   timeout,
		semaphore: make(chan struct{}, DefaultMaxConcurrent),
	}
}

// Fetch returns the OpenGraph data for targetURL, or nil when the page cannot
// be fetched, is not HTML, or carries no usable metadata. It never returns an
// error: every failure degrades to nil.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Data {
	if !urlutils.IsValidURL(targetURL) {
		slog.Debug("Skipping invalid URL", "url", targetURL)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Acquire semaphore slot
	select {
	case f.semaphore <- struct{}{}:
		defer func() { <-f.semaphore }()
	case <-ctx.Done():
		slog.Debug("Gave up waiting for fetch slot", "url", targetURL, "error", ctx.Err())
		return nil
	}

	slog.Debug("Fetching OpenGraph data", "url", targetURL)

	resp, err := f.client.Get(ctx, targetURL, httputil.RequestOptions{
		Timeout:      f.timeout,
		MaxBodyBytes: maxBodySize,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
	})
	if err != nil {
		slog.Debug("Failed to fetch OpenGraph data", "url", targetURL, "error", err)
		return nil
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		slog.Debug("Failed to fetch OpenGraph data", "url", targetURL, "error", err)
		return nil
	}

	if !httputil.IsHTML(resp) {
		slog.Debug("Not an HTML page", "url", targetURL, "content_type", httputil.GetContentType(resp))
		return nil
	}

	if len(resp.Body) == 0 {
		slog.Debug("Empty response body", "url", targetURL)
		return nil
	}

	data, err := Parse(targetURL, resp.Body, httputil.GetContentType(resp))
	if err != nil {
		slog.Debug("Failed to parse OpenGraph data", "url", targetURL, "error", err)
		return nil
	}
	if data == nil {
		slog.Debug("No OpenGraph metadata found", "url", targetURL)
		return nil
	}

	slog.Debug("Extracted OpenGraph data", "url", targetURL, "title", data.Title, "hasImage", data.Image != "")
	return data
}

// Parse extracts OpenGraph data from an HTML document. It returns nil, nil
// when the document has no title, description, image or site name at all.
// Missing titles fall back to the page URL and missing site names to its host.
func Parse(pageURL string, body []byte, contentType string) (*Data, error) {
	htmlContent, err := convertToUTF8(body, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	data := &Data{
		URL:       pageURL,
		FetchedAt: time.Now(),
	}

	extractOpenGraphTags(doc, data)

	if data.Title == "" && data.Description == "" && data.Image == "" && data.SiteName == "" {
		return nil, nil
	}

	applyFallbacks(doc, data)
	cleanupData(data)

	return data, nil
}

// extractOpenGraphTags recursively extracts OpenGraph meta tags from HTML
func extractOpenGraphTags(n *html.Node, data *Data) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			processMetaTag(n, data)
		case "title":
			if data.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				data.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractOpenGraphTags(c, data)
	}
}

// processMetaTag processes individual meta tags
func processMetaTag(n *html.Node, data *Data) {
	var property, content, name string

	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = attr.Val
		case "content":
			content = strings.TrimSpace(attr.Val)
		case "name":
			name = attr.Val
		}
	}

	if content == "" {
		return
	}

	// og:* wins over anything seen earlier, e.g. a <title> before the meta tags
	switch property {
	case "og:title":
		data.Title = content
	case "og:description":
		data.Description = content
	case "og:image", "og:image:url", "og:image:secure_url":
		if data.Image == "" {
			data.Image = content
		}
	case "og:site_name":
		data.SiteName = content
	}

	if data.Description == "" {
		switch name {
		case "description", "twitter:description":
			data.Description = content
		}
	}

	if data.Image == "" && (name == "twitter:image" || name == "twitter:image:src") {
		data.Image = content
	}

	if data.Title == "" && name == "twitter:title" {
		data.Title = content
	}
}

// applyFallbacks applies fallback strategies for missing OpenGraph data
func applyFallbacks(doc *html.Node, data *Data) {
	if data.Description == "" {
		data.Description = extractFirstParagraph(doc)
	}

	if data.Title == "" {
		data.Title = data.URL
	}

	if data.SiteName == "" && data.URL != "" {
		if u, err := url.Parse(data.URL); err == nil {
			data.SiteName = u.Host
		}
	}
}

// extractFirstParagraph extracts the first meaningful paragraph from the document
func extractFirstParagraph(doc *html.Node) string {
	var findFirstP func(*html.Node) string
	findFirstP = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "p" {
			var text strings.Builder
			var extractText func(*html.Node)
			extractText = func(node *html.Node) {
				if node.Type == html.TextNode {
					text.WriteString(node.Data)
				}
				for c := node.FirstChild; c != nil; c = c.NextSibling {
					extractText(c)
				}
			}
			extractText(n)

			result := strings.TrimSpace(text.String())
			if len([]rune(result)) > 20 {
				return result
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if result := findFirstP(c); result != "" {
				return result
			}
		}
		return ""
	}

	return findFirstP(doc)
}

// cleanupData trims and normalizes the extracted fields
func cleanupData(data *Data) {
	data.Title = cleanText(data.Title)
	data.Description = cleanText(data.Description)
	data.SiteName = cleanText(data.SiteName)
	data.Image = strings.TrimSpace(data.Image)

	if runes := []rune(data.Title); len(runes) > maxTitleLength {
		data.Title = string(runes[:maxTitleLength-3]) + "..."
	}
}

// cleanText collapses whitespace and removes null bytes
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.Join(strings.Fields(s), " ")
}

// convertToUTF8 converts response body to UTF-8 string with proper encoding detection
func convertToUTF8(body []byte, contentType string) (string, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		slog.Warn("Failed to detect charset, assuming UTF-8", "error", err)
		return string(body), nil
	}

	utf8Bytes, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}

	return string(utf8Bytes), nil
}
