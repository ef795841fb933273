package opengraph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httputil "github.com/lepinkainen/smart-url-view/pkg/http"
)

type stubClient struct {
	resp  *httputil.Response
	err   error
	calls int
}

func (s *stubClient) Get(ctx context.Context, url string, opts httputil.RequestOptions) (*httputil.Response, error) {
	s.calls++
	return s.resp, s.err
}

func htmlResponse(body string) *httputil.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &httputil.Response{StatusCode: http.StatusOK, Header: header, Body: []byte(body)}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected *Data
	}{
		{
			name: "full open graph",
			body: `<html><head><title>Fallback</title>
				<meta property="og:title" content="T">
				<meta property="og:description" content="A  description
				spanning lines">
				<meta property="og:image" content="https://ext.example/i.jpg">
				<meta property="og:site_name" content="Ext">
				</head><body></body></html>`,
			expected: &Data{Title: "T", Description: "A description spanning lines", Image: "https://ext.example/i.jpg", SiteName: "Ext"},
		},
		{
			name:     "title tag only falls back to host",
			body:     `<html><head><title>Plain page</title></head><body><p>short</p></body></html>`,
			expected: &Data{Title: "Plain page", SiteName: "ext.example"},
		},
		{
			name: "twitter and meta description fallbacks",
			body: `<html><head>
				<meta name="twitter:title" content="Tw title">
				<meta name="description" content="Meta desc">
				<meta name="twitter:image" content="/img/card.png">
				</head></html>`,
			expected: &Data{Title: "Tw title", Description: "Meta desc", Image: "/img/card.png", SiteName: "ext.example"},
		},
		{
			name:     "image only uses url as title",
			body:     `<html><head><meta property="og:image" content="//cdn.example/a.png"></head></html>`,
			expected: &Data{Title: "https://ext.example/article", Image: "//cdn.example/a.png", SiteName: "ext.example"},
		},
		{
			name:     "entities are decoded",
			body:     `<html><head><meta property="og:title" content="Tom &amp; Jerry"></head></html>`,
			expected: &Data{Title: "Tom & Jerry", SiteName: "ext.example"},
		},
		{
			name:     "no metadata at all",
			body:     `<html><head></head><body><p>Just some body text that is long enough</p></body></html>`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse("https://ext.example/article", []byte(tt.body), "text/html; charset=utf-8")
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if tt.expected == nil {
				if got != nil {
					t.Errorf("Parse() = %+v, expected nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Parse() returned nil")
			}
			if got.Title != tt.expected.Title {
				t.Errorf("Title = %q, expected %q", got.Title, tt.expected.Title)
			}
			if got.Description != tt.expected.Description {
				t.Errorf("Description = %q, expected %q", got.Description, tt.expected.Description)
			}
			if got.Image != tt.expected.Image {
				t.Errorf("Image = %q, expected %q", got.Image, tt.expected.Image)
			}
			if got.SiteName != tt.expected.SiteName {
				t.Errorf("SiteName = %q, expected %q", got.SiteName, tt.expected.SiteName)
			}
		})
	}
}

func TestParse_FirstParagraphDescription(t *testing.T) {
	body := `<html><head><meta property="og:title" content="T"></head>
		<body><p>tiny</p><p>This paragraph is long enough to be used.</p></body></html>`

	got, err := Parse("https://ext.example/a", []byte(body), "text/html")
	if err != nil || got == nil {
		t.Fatalf("Parse() = %v, %v", got, err)
	}
	if got.Description != "This paragraph is long enough to be used." {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestParse_LongTitleTruncated(t *testing.T) {
	long := strings.Repeat("あ", 250)
	body := `<html><head><meta property="og:title" content="` + long + `"></head></html>`

	got, err := Parse("https://ext.example/a", []byte(body), "text/html; charset=utf-8")
	if err != nil || got == nil {
		t.Fatalf("Parse() = %v, %v", got, err)
	}
	if n := len([]rune(got.Title)); n != maxTitleLength {
		t.Errorf("title length = %d runes, expected %d", n, maxTitleLength)
	}
	if !strings.HasSuffix(got.Title, "...") {
		t.Error("truncated title should end with ellipsis")
	}
}

func TestFetch_SoftFailures(t *testing.T) {
	jsonHeader := make(http.Header)
	jsonHeader.Set("Content-Type", "application/json")

	tests := []struct {
		name   string
		client *stubClient
		url    string
	}{
		{
			name:   "network error",
			client: &stubClient{err: errors.New("connection refused")},
			url:    "https://ext.example/a",
		},
		{
			name:   "non 2xx",
			client: &stubClient{resp: &httputil.Response{StatusCode: http.StatusInternalServerError, Header: make(http.Header)}},
			url:    "https://ext.example/a",
		},
		{
			name:   "non html",
			client: &stubClient{resp: &httputil.Response{StatusCode: http.StatusOK, Header: jsonHeader, Body: []byte(`{}`)}},
			url:    "https://ext.example/a",
		},
		{
			name:   "empty body",
			client: &stubClient{resp: htmlResponse("")},
			url:    "https://ext.example/a",
		},
		{
			name:   "missing tags",
			client: &stubClient{resp: htmlResponse("<html><body></body></html>")},
			url:    "https://ext.example/a",
		},
		{
			name:   "invalid url",
			client: &stubClient{resp: htmlResponse("<title>x</title>")},
			url:    "not-a-url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(tt.client, time.Second)
			if got := f.Fetch(context.Background(), tt.url); got != nil {
				t.Errorf("Fetch() = %+v, expected nil", got)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	client := &stubClient{resp: htmlResponse(`<meta property="og:title" content="T"><meta property="og:site_name" content="Ext">`)}
	f := NewFetcher(client, time.Second)

	got := f.Fetch(context.Background(), "https://ext.example/article")
	if got == nil {
		t.Fatal("Fetch() returned nil")
	}
	if got.Title != "T" || got.SiteName != "Ext" {
		t.Errorf("Fetch() = %+v", got)
	}
	if client.calls != 1 {
		t.Errorf("client calls = %d, expected 1", client.calls)
	}
}

func TestFetch_TimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewFetcher(httputil.NewClient(nil), 50*time.Millisecond)
	if got := f.Fetch(context.Background(), srv.URL); got != nil {
		t.Errorf("Fetch() = %+v, expected nil on timeout", got)
	}
}

func TestFetch_ShiftJIS(t *testing.T) {
	// "テスト" in Shift_JIS
	title := []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67}
	body := append([]byte(`<html><head><meta property="og:title" content="`), title...)
	body = append(body, []byte(`"></head></html>`)...)

	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=Shift_JIS")
	client := &stubClient{resp: &httputil.Response{StatusCode: http.StatusOK, Header: header, Body: body}}

	got := NewFetcher(client, time.Second).Fetch(context.Background(), "https://ext.example/jp")
	if got == nil {
		t.Fatal("Fetch() returned nil")
	}
	if got.Title != "テスト" {
		t.Errorf("Title = %q, expected テスト", got.Title)
	}
}
