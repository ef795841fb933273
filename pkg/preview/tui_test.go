package preview

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/smart-url-view/pkg/extract"
)

func testItems() []Item {
	return []Item{
		testItem(),
		{Match: extract.Match{Span: "https://site.example/a/", URL: "https://site.example/a/", Pattern: extract.BareLine}, Internal: true},
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return model, cmd
}

func TestModel_Navigation(t *testing.T) {
	m := NewModel(testItems(), "post.html", nil)

	m, _ = update(t, m, keyRunes("k"))
	if m.cursor != 0 {
		t.Errorf("cursor moved above first item: %d", m.cursor)
	}
	m, _ = update(t, m, keyRunes("j"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Errorf("cursor = %d, expected 1", m.cursor)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Errorf("cursor = %d, expected 0", m.cursor)
	}

	if _, cmd := update(t, m, keyRunes("q")); cmd == nil {
		t.Error("q should quit")
	}
}

func TestModel_RendersCardOnEnter(t *testing.T) {
	var calls []string
	render := func(url string) string {
		calls = append(calls, url)
		return testCard
	}
	m := NewModel(testItems(), "post.html", render)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.viewMode != DetailViewMode || m.selectedIndex != 0 {
		t.Fatalf("viewMode = %v, selectedIndex = %d", m.viewMode, m.selectedIndex)
	}
	if !strings.Contains(m.View(), "(rendering...)") {
		t.Errorf("detail view before render:\n%s", m.View())
	}
	if cmd == nil {
		t.Fatal("expected render command")
	}

	m, _ = update(t, m, cmd())
	if !strings.Contains(m.View(), "Example & Co | A description") {
		t.Errorf("detail view after render:\n%s", m.View())
	}

	m, _ = update(t, m, keyRunes("s"))
	if m.viewMode != SourceViewMode || !strings.Contains(m.View(), testCard) {
		t.Errorf("source view:\n%s", m.View())
	}
	m, _ = update(t, m, keyRunes("s"))
	if m.viewMode != DetailViewMode {
		t.Errorf("s should toggle back to detail view, got %v", m.viewMode)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.viewMode != ListViewMode {
		t.Errorf("esc should return to list, got %v", m.viewMode)
	}

	// the card is kept, so re-entering does not render again
	if _, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("card rendered twice")
	}
	if len(calls) != 1 || calls[0] != "https://example.com/post" {
		t.Errorf("render calls = %v", calls)
	}
}

func TestModel_ListView(t *testing.T) {
	m := NewModel(testItems(), "post.html", nil)
	view := m.View()

	for _, want := range []string{
		"URL Preview - post.html (2 candidates)",
		"https://example.com/post",
		"[internal bare-line       ] https://site.example/a/",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("list view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ListViewScrolls(t *testing.T) {
	var items []Item
	for range 20 {
		items = append(items, testItem())
	}
	m := NewModel(items, "many", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})

	lines := strings.Count(m.View(), "https://example.com/post")
	if lines != 4 {
		t.Errorf("visible items = %d, expected 4", lines)
	}
}
