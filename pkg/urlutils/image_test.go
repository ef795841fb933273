package urlutils

import "testing"

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		name     string
		image    string
		page     string
		policy   ImagePolicy
		expected string
	}{
		{
			name:     "empty input",
			image:    "",
			page:     "https://site.com/p",
			expected: "",
		},
		{
			name:     "protocol relative",
			image:    "//cdn.x.com/i.png",
			page:     "https://site.com/p",
			expected: "https://cdn.x.com/i.png",
		},
		{
			name:     "protocol relative keeps page scheme",
			image:    "//cdn.x.com/i.png",
			page:     "http://site.com/p",
			expected: "http://cdn.x.com/i.png",
		},
		{
			name:     "protocol relative strict",
			image:    "//cdn.x.com/i.png",
			page:     "http://site.com/p",
			policy:   ImagePolicy{StrictHTTPS: true},
			expected: "https://cdn.x.com/i.png",
		},
		{
			name:     "absolute path",
			image:    "/i.png",
			page:     "https://site.com/p",
			expected: "https://site.com/i.png",
		},
		{
			name:     "relative path with query",
			image:    "i.png?x=1",
			page:     "https://site.com/blog/post",
			expected: "https://site.com/blog/i.png?x=1",
		},
		{
			name:     "relative path against directory page",
			image:    "i.png",
			page:     "https://site.com/blog/",
			expected: "https://site.com/blog/i.png",
		},
		{
			name:     "relative path against root page",
			image:    "i.png",
			page:     "https://site.com/p",
			expected: "https://site.com/i.png",
		},
		{
			name:     "relative path without page host",
			image:    "i.png",
			page:     "not a url",
			expected: "",
		},
		{
			name:     "strict upgrades http",
			image:    "http://x.com/i.gif",
			page:     "https://site.com/p",
			policy:   ImagePolicy{StrictHTTPS: true},
			expected: "https://x.com/i.gif",
		},
		{
			name:     "lenient keeps http",
			image:    "http://x.com/i.gif",
			page:     "https://site.com/p",
			expected: "http://x.com/i.gif",
		},
		{
			name:     "disallowed extension",
			image:    "http://x.com/i.exe",
			page:     "https://site.com/p",
			expected: "",
		},
		{
			name:     "missing extension",
			image:    "https://x.com/image",
			page:     "https://site.com/p",
			expected: "",
		},
		{
			name:     "uppercase extension",
			image:    "https://x.com/PHOTO.JPG",
			page:     "https://site.com/p",
			expected: "https://x.com/PHOTO.JPG",
		},
		{
			name:     "query does not hide extension",
			image:    "https://x.com/i.webp?w=1200&h=630",
			page:     "https://site.com/p",
			expected: "https://x.com/i.webp?w=1200&h=630",
		},
		{
			name:     "extension only in query",
			image:    "https://x.com/render?f=a.png",
			page:     "https://site.com/p",
			expected: "",
		},
		{
			name:     "strict rejects other scheme",
			image:    "ftp://x.com/i.png",
			page:     "https://site.com/p",
			policy:   ImagePolicy{StrictHTTPS: true},
			expected: "",
		},
		{
			name:     "whitespace inside url",
			image:    "https://x.com/my image.png",
			page:     "https://site.com/p",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeImageURL(tt.image, tt.page, tt.policy)
			if got != tt.expected {
				t.Errorf("NormalizeImageURL(%q, %q) = %q, expected %q", tt.image, tt.page, got, tt.expected)
			}
		})
	}
}

func TestExtensionOf(t *testing.T) {
	tests := map[string]string{
		"https://x.com/a.PNG":         "png",
		"https://x.com/a.jpeg?v=2":    "jpeg",
		"https://x.com/dir.v1/file":   "",
		"https://x.com":               "",
		"https://x.com/a.gif#section": "gif",
	}
	for in, want := range tests {
		if got := ExtensionOf(in); got != want {
			t.Errorf("ExtensionOf(%q) = %q, expected %q", in, got, want)
		}
	}
}
