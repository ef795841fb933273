package preview

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/lepinkainen/smart-url-view/pkg/extract"
	"github.com/lepinkainen/smart-url-view/pkg/testutil"
)

const testCard = `<div class="c"><div class="t">Example &amp; Co</div><div class="d">A description</div></div>`

func testItem() Item {
	return Item{
		Match: extract.Match{
			Span:    "<p>https://example.com/post</p>",
			URL:     "https://example.com/post",
			Pattern: extract.BareParagraph,
		},
	}
}

func TestBuildItems(t *testing.T) {
	matches := []extract.Match{
		{URL: "https://site.example/a/", Pattern: extract.BareLine},
		{URL: "https://other.example/b", Pattern: extract.GutenbergEmbed},
	}
	items := BuildItems(matches, func(u string) bool {
		return strings.HasPrefix(u, "https://site.example")
	})

	if len(items) != 2 {
		t.Fatalf("BuildItems() returned %d items, expected 2", len(items))
	}
	if items[0].Class() != "internal" || items[1].Class() != "external" {
		t.Errorf("classes = %s, %s", items[0].Class(), items[1].Class())
	}
}

func TestFormatCompactListItem(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		item     Item
		expected string
	}{
		{
			name:     "external bare paragraph",
			index:    0,
			item:     testItem(),
			expected: " 1. [external bare-paragraph  ] https://example.com/post",
		},
		{
			name:     "internal bare line",
			index:    11,
			item:     Item{Match: extract.Match{URL: "https://site.example/a/", Pattern: extract.BareLine}, Internal: true},
			expected: "12. [internal bare-line       ] https://site.example/a/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCompactListItem(tt.index, tt.item); got != tt.expected {
				t.Errorf("FormatCompactListItem() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestFormatCompactListItem_TruncatesLongURL(t *testing.T) {
	item := testItem()
	item.Match.URL = "https://example.com/" + strings.Repeat("x", 200)

	got := FormatCompactListItem(0, item)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated URL, got %q", got)
	}
	if strings.Contains(got, strings.Repeat("x", 100)) {
		t.Errorf("URL not truncated: %q", got)
	}
}

func TestFormatDetailedItem(t *testing.T) {
	got := FormatDetailedItem(testItem(), testCard)
	testutil.CompareGolden(t, filepath.Join("testdata", "detail.golden"), got)
}

func TestFormatDetailedItem_Pending(t *testing.T) {
	got := FormatDetailedItem(testItem(), "")
	if !strings.Contains(got, "(rendering...)") {
		t.Errorf("expected rendering placeholder:\n%s", got)
	}
}

func TestFormatSource(t *testing.T) {
	got := FormatSource(testItem(), testCard)
	for _, want := range []string{
		"Matched markup:\n<p>https://example.com/post</p>\n",
		"Card markup:\n" + testCard + "\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSource() missing %q:\n%s", want, got)
		}
	}
}

func TestCardText(t *testing.T) {
	tests := map[string]string{
		testCard:                        "Example & Co | A description",
		"":                              "",
		"plain":                         "plain",
		`<a href="x"><img src="y"></a>`: "",
		"<p> spaced </p><p>twice</p>":   "spaced | twice",
	}
	for in, expected := range tests {
		if got := CardText(in); got != expected {
			t.Errorf("CardText(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	expected := "one two\nthree\nfour"
	if got != expected {
		t.Errorf("wrapText() = %q, expected %q", got, expected)
	}
}

func TestWrapMarkup(t *testing.T) {
	short := "<p>short</p>"
	if got := wrapMarkup(short, 80); got != short+"\n" {
		t.Errorf("wrapMarkup(short) = %q", got)
	}

	long := strings.Repeat(`<span class="a">x</span>`, 10)
	got := wrapMarkup(long, 40)
	for line := range strings.SplitSeq(strings.TrimSuffix(got, "\n"), "\n") {
		if len(line) > 41 {
			t.Errorf("line too long (%d): %q", len(line), line)
		}
	}
	if strings.ReplaceAll(got, "\n", "") != long {
		t.Error("wrapMarkup() altered content")
	}
}
