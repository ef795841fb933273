// Package urlutils provides URL helpers shared by the extractor, the metadata
// fetcher and the image cache.
package urlutils

import (
	"net/url"
	"strings"
)

// IsValidURL checks if a URL is valid
func IsValidURL(urlStr string) bool {
	if urlStr == "" || strings.ContainsAny(urlStr, " \t\r\n") {
		return false
	}
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ResolveURL resolves a relative URL against a base URL
// If the URL is already absolute, it returns it unchanged
func ResolveURL(baseURL, relativeURL string) (string, error) {
	// Parse the relative URL
	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", err
	}

	// If it's already absolute, return as-is
	if rel.IsAbs() {
		return relativeURL, nil
	}

	// Parse the base URL
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	// Resolve the relative URL against the base
	resolved := base.ResolveReference(rel)
	return resolved.String(), nil
}

// Host returns the host component of rawURL, or an empty string when the URL
// cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// IsInternal reports whether rawURL belongs to the site rooted at siteURL.
// The comparison is a plain prefix match on the raw strings.
func IsInternal(rawURL, siteURL string) bool {
	return siteURL != "" && strings.HasPrefix(rawURL, siteURL)
}

// StripQuery removes the query string and fragment from rawURL.
func StripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
