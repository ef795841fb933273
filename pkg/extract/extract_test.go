package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lepinkainen/smart-url-view/pkg/testutil"
)

const testSiteURL = "https://site.example"

func TestExtract(t *testing.T) {
	wpEmbed := `<p><blockquote class="wp-embedded-content" data-secret="abc"><a href="https://site.example/hello/">Hello</a></blockquote>` +
		`<iframe class="wp-embedded-content" sandbox="allow-scripts" src="https://site.example/hello/embed/"></iframe></p>`
	internalFigure := "<figure class=\"wp-block-embed is-type-wp-embed\"><div class=\"wp-block-embed__wrapper\">\nhttps://site.example/post/\n</div></figure>"
	externalFigure := "<figure class=\"wp-block-embed is-provider-youtube\"><div class=\"wp-block-embed__wrapper\">\nhttps://www.youtube.com/watch?v=x\n</div></figure>"

	tests := []struct {
		name          string
		content       string
		includeNested bool
		expected      []Match
	}{
		{
			name:     "empty content",
			content:  "",
			expected: nil,
		},
		{
			name:     "no urls",
			content:  "<p>Hello world</p>\n<p>Nothing to see</p>",
			expected: nil,
		},
		{
			name:    "bare paragraph",
			content: "<p>https://ext.example/article</p>",
			expected: []Match{
				{Span: "<p>https://ext.example/article</p>", URL: "https://ext.example/article", Pattern: BareParagraph},
			},
		},
		{
			name:    "linked paragraph uses link text",
			content: `<p><a href="https://ext.example/a">https://ext.example/a</a></p>`,
			expected: []Match{
				{Span: `<p><a href="https://ext.example/a">https://ext.example/a</a></p>`, URL: "https://ext.example/a", Pattern: BareParagraph},
			},
		},
		{
			name:    "anchor paragraph with matching text",
			content: `<p><a href="//cdn.example/page">//cdn.example/page</a></p>`,
			expected: []Match{
				{Span: `<p><a href="//cdn.example/page">//cdn.example/page</a></p>`, URL: "//cdn.example/page", Pattern: AnchorParagraph},
			},
		},
		{
			name:     "anchor paragraph with different text",
			content:  `<p><a href="https://ext.example/a">Read more</a></p>`,
			expected: nil,
		},
		{
			name:     "url inside running text",
			content:  "<p>See https://ext.example/a for details</p>",
			expected: nil,
		},
		{
			name:    "wp embed",
			content: wpEmbed,
			expected: []Match{
				{Span: wpEmbed, URL: "https://site.example/hello/", Pattern: WpEmbed},
			},
		},
		{
			name:    "internal gutenberg embed",
			content: internalFigure,
			expected: []Match{
				{Span: internalFigure, URL: "https://site.example/post/", Pattern: GutenbergEmbed},
			},
		},
		{
			name:    "external gutenberg embed",
			content: externalFigure,
			expected: []Match{
				{Span: externalFigure, URL: "https://www.youtube.com/watch?v=x", Pattern: GutenbergEmbed},
			},
		},
		{
			name:     "site host with other scheme is not an embed",
			content:  "<figure class=\"wp-block-embed\"><div class=\"wp-block-embed__wrapper\">\nhttp://site.example/x\n</div></figure>",
			expected: nil,
		},
		{
			name:          "site host with other scheme falls through to bare line when nested",
			content:       "<figure class=\"wp-block-embed\"><div class=\"wp-block-embed__wrapper\">\nhttp://site.example/x\n</div></figure>",
			includeNested: true,
			expected: []Match{
				{Span: "http://site.example/x", URL: "http://site.example/x", Pattern: BareLine},
			},
		},
		{
			name:    "bare lines",
			content: "Intro text\nhttps://ext.example/line\n  https://ext.example/indented  \nnot https://inline.example/x",
			expected: []Match{
				{Span: "https://ext.example/line", URL: "https://ext.example/line", Pattern: BareLine},
				{Span: "  https://ext.example/indented  ", URL: "https://ext.example/indented", Pattern: BareLine},
			},
		},
		{
			name:    "protected blockquote",
			content: "<blockquote><p>https://quoted.example/</p></blockquote>\n<p>https://top.example/</p>",
			expected: []Match{
				{Span: "<p>https://top.example/</p>", URL: "https://top.example/", Pattern: BareParagraph},
			},
		},
		{
			name:          "protected blockquote included",
			content:       "<blockquote><p>https://quoted.example/</p></blockquote>\n<p>https://top.example/</p>",
			includeNested: true,
			expected: []Match{
				{Span: "<p>https://quoted.example/</p>", URL: "https://quoted.example/", Pattern: BareParagraph},
				{Span: "<p>https://top.example/</p>", URL: "https://top.example/", Pattern: BareParagraph},
			},
		},
		{
			name:    "nested containers",
			content: "<div><div>x</div>\n<p>https://in.example/</p>\n<section>\nhttps://in.example/line\n</section></div>\n<p>https://out.example/</p>",
			expected: []Match{
				{Span: "<p>https://out.example/</p>", URL: "https://out.example/", Pattern: BareParagraph},
			},
		},
		{
			name:     "unclosed container protects the rest",
			content:  "<div>\n<p>https://in.example/</p>",
			expected: nil,
		},
		{
			name:    "document order across patterns",
			content: "<p>https://b.example/</p>\n" + externalFigure,
			expected: []Match{
				{Span: "<p>https://b.example/</p>", URL: "https://b.example/", Pattern: BareParagraph},
				{Span: externalFigure, URL: "https://www.youtube.com/watch?v=x", Pattern: GutenbergEmbed},
			},
		},
		{
			name:    "embed consumed before bare line",
			content: externalFigure + "\nhttps://www.youtube.com/watch?v=x",
			expected: []Match{
				{Span: externalFigure, URL: "https://www.youtube.com/watch?v=x", Pattern: GutenbergEmbed},
				{Span: "https://www.youtube.com/watch?v=x", URL: "https://www.youtube.com/watch?v=x", Pattern: BareLine},
			},
		},
		{
			name:     "url followed by markup on the same line",
			content:  "https://a.example/<p>https://b.example/</p>",
			expected: []Match{{Span: "<p>https://b.example/</p>", URL: "https://b.example/", Pattern: BareParagraph}},
		},
	}

	e := New(testSiteURL)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.content, tt.includeNested)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Extract() = %#v, expected %#v", got, tt.expected)
			}
		})
	}
}

func TestExtract_Golden(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "mixed.html"))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	tests := []struct {
		golden        string
		includeNested bool
	}{
		{golden: "mixed.golden.json", includeNested: false},
		{golden: "mixed_nested.golden.json", includeNested: true},
	}

	e := New(testSiteURL)
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			var actual []string
			for _, m := range e.Extract(string(content), tt.includeNested) {
				actual = append(actual, m.Pattern.String()+" "+m.URL)
			}
			testutil.CompareGoldenSlice(t, filepath.Join("testdata", tt.golden), actual)
		})
	}
}

func TestRewrite(t *testing.T) {
	e := New(testSiteURL)

	content := "<blockquote><p>https://quoted.example/</p></blockquote>\n" +
		"<p>https://ext.example/a</p>\n" +
		"Some text\n" +
		"https://ext.example/b\n"

	got := e.Rewrite(content, false, func(m Match) string {
		return "[" + m.Pattern.String() + ":" + m.URL + "]"
	})
	expected := "<blockquote><p>https://quoted.example/</p></blockquote>\n" +
		"[bare-paragraph:https://ext.example/a]\n" +
		"Some text\n" +
		"[bare-line:https://ext.example/b]\n"
	if got != expected {
		t.Errorf("Rewrite() =\n%q\nexpected\n%q", got, expected)
	}
}

func TestRewrite_IdentityCallback(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "mixed.html"))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	e := New(testSiteURL)
	for _, nested := range []bool{false, true} {
		got := e.Rewrite(string(content), nested, func(m Match) string { return m.Span })
		if got != string(content) {
			t.Errorf("Rewrite(nested=%v) with identity callback changed content", nested)
		}
	}
}

func TestRewrite_OutputNotRematched(t *testing.T) {
	e := New(testSiteURL)
	card := `<div class="smart-url-view-card"><a href="https://ext.example/a" class="smart-url-view-link"><div class="smart-url-view-content"><div class="smart-url-view-title">https://ext.example/a</div><div class="smart-url-view-site">ext.example</div></div></a></div>`

	first := e.Rewrite("<p>https://ext.example/a</p>", false, func(Match) string { return card })
	if first != card {
		t.Fatalf("Rewrite() = %q", first)
	}
	for _, nested := range []bool{false, true} {
		if matches := e.Extract(first, nested); len(matches) != 0 {
			t.Errorf("card markup produced matches: %v", matches)
		}
	}
}

func TestNew_EmptySiteURL(t *testing.T) {
	e := New("")
	figure := "<figure class=\"wp-block-embed\"><div class=\"wp-block-embed__wrapper\">\nhttps://any.example/x\n</div></figure>"

	got := e.Extract(figure+"\n<p>not a url</p>", false)
	if len(got) != 1 || got[0].Pattern != GutenbergEmbed || got[0].URL != "https://any.example/x" {
		t.Errorf("Extract() = %#v", got)
	}
}

func TestPatternString(t *testing.T) {
	tests := map[Pattern]string{
		WpEmbed:         "wp-embed",
		GutenbergEmbed:  "gutenberg-embed",
		BareParagraph:   "bare-paragraph",
		AnchorParagraph: "anchor-paragraph",
		BareLine:        "bare-line",
		Pattern(42):     "unknown",
	}
	for p, expected := range tests {
		if got := p.String(); got != expected {
			t.Errorf("Pattern(%d).String() = %q, expected %q", int(p), got, expected)
		}
	}
}

func TestExtract_LargeContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("<p>filler text</p>\n<p>https://ext.example/item</p>\n")
	}
	got := New(testSiteURL).Extract(b.String(), false)
	if len(got) != 200 {
		t.Errorf("Extract() found %d matches, expected 200", len(got))
	}
}
