// Package card renders link cards as HTML fragments.
package card

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"log/slog"

	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
	"github.com/lepinkainen/smart-url-view/templates"
)

// MaxDescriptionLength is the number of code points kept from a description.
const MaxDescriptionLength = 150

const (
	cardTemplate       = "card"
	simpleCardTemplate = "card_simple"
)

// Model holds the resolved fields of a card.
type Model struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
	SiteName    string
	TargetBlank bool
}

// Renderer turns card models into HTML fragments.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the card templates. Files in override take precedence
// over the embedded copies; pass nil to use only the embedded templates.
func NewRenderer(override fs.FS) (*Renderer, error) {
	tmpl := template.New("cards")
	for _, name := range []string{cardTemplate, simpleCardTemplate} {
		content, err := readTemplate(override, name+".tmpl")
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("template file %s.tmpl does not define %q", name, name)
		}
	}
	return &Renderer{tmpl: tmpl}, nil
}

func readTemplate(override fs.FS, file string) ([]byte, error) {
	if override != nil {
		if content, err := fs.ReadFile(override, file); err == nil {
			slog.Debug("Using template override", "file", file)
			return content, nil
		}
	}
	content, err := fs.ReadFile(templates.EmbeddedTemplates, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", file, err)
	}
	return content, nil
}

// Render returns the full card markup. The description is truncated and the
// thumbnail is only emitted when ImageURL is a valid absolute URL.
func (r *Renderer) Render(m Model) string {
	if !urlutils.IsValidURL(m.ImageURL) {
		m.ImageURL = ""
	}
	m.Description = TruncateDescription(m.Description)
	return r.execute(cardTemplate, m, m.URL)
}

// RenderSimple returns the degraded card used when no metadata is available.
func (r *Renderer) RenderSimple(url, siteName string, targetBlank bool) string {
	return r.execute(simpleCardTemplate, Model{URL: url, SiteName: siteName, TargetBlank: targetBlank}, url)
}

func (r *Renderer) execute(name string, m Model, url string) string {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, m); err != nil {
		slog.Error("Failed to render card", "template", name, "url", url, "error", err)
		escaped := html.EscapeString(url)
		return `<a href="` + escaped + `">` + escaped + `</a>`
	}
	return buf.String()
}

// TruncateDescription cuts s to MaxDescriptionLength code points and appends
// an ellipsis when anything was removed.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLength {
		return s
	}
	return string(runes[:MaxDescriptionLength]) + "..."
}
