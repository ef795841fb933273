package urlutils

import (
	"net/url"
	"path"
	"strings"
)

// AllowedImageExtensions lists the file extensions accepted for card thumbnails.
var AllowedImageExtensions = []string{"png", "jpg", "jpeg", "gif", "webp", "svg"}

// ImagePolicy controls how image URLs are upgraded during normalization.
type ImagePolicy struct {
	// StrictHTTPS rewrites http:// image URLs to https:// and rejects any
	// other scheme.
	StrictHTTPS bool
}

// NormalizeImageURL turns an og:image value into an absolute URL resolved
// against pageURL. It returns an empty string when the image is unusable.
func NormalizeImageURL(imageURL, pageURL string, policy ImagePolicy) string {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return ""
	}

	page, err := url.Parse(pageURL)
	if err != nil {
		page = &url.URL{}
	}
	scheme := page.Scheme
	if scheme == "" || policy.StrictHTTPS {
		scheme = "https"
	}

	switch {
	case strings.HasPrefix(imageURL, "//"):
		imageURL = scheme + ":" + imageURL

	case strings.HasPrefix(imageURL, "/"):
		if page.Host == "" {
			return ""
		}
		imageURL = scheme + "://" + page.Host + imageURL

	case !strings.HasPrefix(imageURL, "http"):
		if page.Host == "" {
			return ""
		}
		base := scheme + "://" + page.Host + pageDir(page.Path)
		imageURL = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(imageURL, "/")
	}

	if policy.StrictHTTPS {
		switch {
		case strings.HasPrefix(imageURL, "https://"):
		case strings.HasPrefix(imageURL, "http://"):
			imageURL = "https://" + strings.TrimPrefix(imageURL, "http://")
		default:
			return ""
		}
	}

	if !IsValidURL(imageURL) {
		return ""
	}

	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	if !HasAllowedImageExt(imageURL) {
		return ""
	}

	return imageURL
}

// ExtensionOf returns the lowercased file extension of the URL path, ignoring
// any query string or fragment. The leading dot is not included.
func ExtensionOf(rawURL string) string {
	p := StripQuery(rawURL)
	if u, err := url.Parse(p); err == nil && u.Host != "" {
		p = u.Path
	}
	ext := path.Ext(p)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// HasAllowedImageExt reports whether the URL ends in one of
// AllowedImageExtensions.
func HasAllowedImageExt(rawURL string) bool {
	ext := ExtensionOf(rawURL)
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedImageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// pageDir returns the directory relative images resolve against. It is
// path.Dir, so a trailing slash names a directory:
// "/blog/post" -> "/blog", "/blog/" -> "/blog", "/post" -> "/", "" -> "".
func pageDir(p string) string {
	if p == "" {
		return ""
	}
	return path.Dir(p)
}
