// Package extract finds candidate URLs in rendered HTML content using a fixed,
// ordered set of structural patterns.
//
// Matching is regex based and works on the specific markup shapes produced by
// the publishing platform. It is not a general HTML parser and malformed input
// may produce surprising results.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// Pattern identifies which structural pattern produced a match.
type Pattern int

const (
	// WpEmbed is a blockquote plus iframe embed wrapped in a paragraph.
	WpEmbed Pattern = iota
	// GutenbergEmbed is a block-editor embed figure wrapping a bare URL.
	GutenbergEmbed
	// BareParagraph is a paragraph holding only a URL, optionally linked.
	BareParagraph
	// AnchorParagraph is a paragraph holding one anchor whose text equals its href.
	AnchorParagraph
	// BareLine is a line consisting solely of a URL.
	BareLine
)

func (p Pattern) String() string {
	switch p {
	case WpEmbed:
		return "wp-embed"
	case GutenbergEmbed:
		return "gutenberg-embed"
	case BareParagraph:
		return "bare-paragraph"
	case AnchorParagraph:
		return "anchor-paragraph"
	case BareLine:
		return "bare-line"
	default:
		return "unknown"
	}
}

// Match is a candidate URL together with the exact markup it was found in.
type Match struct {
	Span    string
	URL     string
	Pattern Pattern
}

var (
	wpEmbedPattern         = regexp.MustCompile(`(?is)<p>\s*<blockquote class="wp-embedded-content"[^>]*>\s*<a href=["']([^"']+)["'][^>]*>.*?</a>\s*</blockquote>\s*<iframe class="wp-embedded-content"[^>]*>.*?</iframe>\s*</p>`)
	externalEmbedPattern   = regexp.MustCompile(`(?is)<figure class="wp-block-embed[^"]*">\s*<div class="wp-block-embed__wrapper">\s*(https?://[^\s<>"]+?)\s*</div>\s*</figure>`)
	bareParagraphPattern   = regexp.MustCompile(`(?i)<p>\s*(<a[^>]+>)?(https?://[^\s<>"]+?)(</a>)?\s*</p>`)
	anchorParagraphPattern = regexp.MustCompile(`(?i)<p>\s*<a[^>]+href=["']([^"']+)["'][^>]*>([^<]*)</a>\s*</p>`)
	bareLinePattern        = regexp.MustCompile(`(?m)^[ \t]*(https?://[^\s<>"]+?)[ \t]*$`)

	protectedTagPattern = regexp.MustCompile(`(?i)<(/?)(?:blockquote|div|section|aside|article)\b[^>]*>`)
	tokenPattern        = regexp.MustCompile("<\x00([mb])(\\d+)\x00>")
)

// Extractor scans content for candidate URLs. It is safe for concurrent use.
type Extractor struct {
	siteURL       string
	siteHost      string
	internalEmbed *regexp.Regexp
}

// New creates an Extractor for the site whose base URL is siteURL.
func New(siteURL string) *Extractor {
	e := &Extractor{
		siteURL:  siteURL,
		siteHost: urlutils.Host(siteURL),
	}
	if siteURL != "" {
		e.internalEmbed = regexp.MustCompile(`(?is)<figure class="wp-block-embed[^"]*">\s*<div class="wp-block-embed__wrapper">\s*(` +
			regexp.QuoteMeta(siteURL) + `[^\s<>"]*?)\s*</div>\s*</figure>`)
	}
	return e
}

// SiteURL returns the base URL the extractor was created with.
func (e *Extractor) SiteURL() string {
	return e.siteURL
}

// Extract returns the candidate matches in document order. When includeNested
// is false, paragraphs and lines inside blockquote, div, section, aside and
// article containers are not considered.
func (e *Extractor) Extract(content string, includeNested bool) []Match {
	if content == "" {
		return nil
	}
	s := e.scan(content, includeNested)

	var matches []Match
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(s.text, -1) {
		if m, ok := s.match(s.text[loc[2]:loc[3]], s.text[loc[4]:loc[5]]); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// Rewrite replaces every match with the output of fn. Content outside the
// matches, including protected containers, is returned byte-for-byte.
func (e *Extractor) Rewrite(content string, includeNested bool, fn func(Match) string) string {
	if content == "" {
		return content
	}
	s := e.scan(content, includeNested)
	if len(s.matches) == 0 {
		return content
	}

	return tokenPattern.ReplaceAllStringFunc(s.text, func(token string) string {
		sub := tokenPattern.FindStringSubmatch(token)
		m, ok := s.match(sub[1], sub[2])
		if !ok {
			return token
		}
		return fn(m)
	})
}

// scan runs all pattern passes and leaves match tokens in place of each
// matched span. Protected containers are already restored in the result.
func (e *Extractor) scan(content string, includeNested bool) *scanner {
	s := &scanner{text: content}

	s.replace(wpEmbedPattern, WpEmbed, func(g []string) (string, bool) {
		return g[1], true
	})
	if e.internalEmbed != nil {
		s.replace(e.internalEmbed, GutenbergEmbed, func(g []string) (string, bool) {
			return g[1], true
		})
	}
	s.replace(externalEmbedPattern, GutenbergEmbed, func(g []string) (string, bool) {
		return g[1], !e.isSiteHost(g[1])
	})

	if !includeNested {
		s.protect()
	}

	s.replace(bareParagraphPattern, BareParagraph, func(g []string) (string, bool) {
		return g[2], true
	})
	s.replace(anchorParagraphPattern, AnchorParagraph, func(g []string) (string, bool) {
		return g[1], g[1] == g[2]
	})
	s.replace(bareLinePattern, BareLine, func(g []string) (string, bool) {
		return g[1], true
	})

	s.restore()
	return s
}

// isSiteHost reports whether the part of rawURL after the scheme starts with
// the site host.
func (e *Extractor) isSiteHost(rawURL string) bool {
	if e.siteHost == "" {
		return false
	}
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	return len(rest) >= len(e.siteHost) && strings.EqualFold(rest[:len(e.siteHost)], e.siteHost)
}

type scanner struct {
	text      string
	matches   []Match
	protected []string
}

func (s *scanner) token(kind string, idx int) string {
	return "<\x00" + kind + strconv.Itoa(idx) + "\x00>"
}

func (s *scanner) match(kind, idx string) (Match, bool) {
	if kind != "m" {
		return Match{}, false
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(s.matches) {
		return Match{}, false
	}
	return s.matches[i], true
}

// replace swaps every accepted match of re for a token. pick receives the
// submatches and returns the URL and whether the match is accepted.
func (s *scanner) replace(re *regexp.Regexp, p Pattern, pick func(groups []string) (string, bool)) {
	locs := re.FindAllStringSubmatchIndex(s.text, -1)
	if len(locs) == 0 {
		return
	}

	var b strings.Builder
	b.Grow(len(s.text))
	last := 0
	for _, loc := range locs {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s.text[loc[2*i]:loc[2*i+1]]
			}
		}
		url, ok := pick(groups)
		if !ok {
			continue
		}
		b.WriteString(s.text[last:loc[0]])
		b.WriteString(s.token("m", len(s.matches)))
		s.matches = append(s.matches, Match{Span: groups[0], URL: url, Pattern: p})
		last = loc[1]
	}
	b.WriteString(s.text[last:])
	s.text = b.String()
}

// protect swaps each outermost protected container for a token. Nesting is
// tracked across all protected tag names; an unclosed container extends to
// the end of the content.
func (s *scanner) protect() {
	tags := protectedTagPattern.FindAllStringSubmatchIndex(s.text, -1)
	if len(tags) == 0 {
		return
	}

	var b strings.Builder
	b.Grow(len(s.text))
	last, start, depth := 0, 0, 0
	for _, loc := range tags {
		closing := loc[3] > loc[2]
		selfClosing := strings.HasSuffix(s.text[loc[0]:loc[1]], "/>")

		switch {
		case closing:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				b.WriteString(s.text[last:start])
				b.WriteString(s.token("b", len(s.protected)))
				s.protected = append(s.protected, s.text[start:loc[1]])
				last = loc[1]
			}
		case selfClosing:
		default:
			if depth == 0 {
				start = loc[0]
			}
			depth++
		}
	}
	if depth > 0 {
		b.WriteString(s.text[last:start])
		b.WriteString(s.token("b", len(s.protected)))
		s.protected = append(s.protected, s.text[start:])
		last = len(s.text)
	}
	b.WriteString(s.text[last:])
	s.text = b.String()
}

// restore puts protected containers back verbatim.
func (s *scanner) restore() {
	if len(s.protected) == 0 {
		return
	}
	s.text = tokenPattern.ReplaceAllStringFunc(s.text, func(token string) string {
		sub := tokenPattern.FindStringSubmatch(token)
		if sub[1] != "b" {
			return token
		}
		i, err := strconv.Atoi(sub[2])
		if err != nil || i >= len(s.protected) {
			return token
		}
		return s.protected[i]
	})
	s.protected = nil
}
