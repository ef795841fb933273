package http

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// EnsureStatusOK checks if the response status is 2xx
func EnsureStatusOK(resp *Response) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

// GetContentType returns the content type of the response
func GetContentType(resp *Response) string {
	return resp.Header.Get("Content-Type")
}

// MediaType returns the lowercased media type of a Content-Type header value
// with any parameters removed: "image/JPEG; charset=binary" -> "image/jpeg".
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// IsHTML reports whether the response declares an HTML document.
func IsHTML(resp *Response) bool {
	mt := MediaType(GetContentType(resp))
	return mt == "text/html" || mt == "application/xhtml+xml"
}
