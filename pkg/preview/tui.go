package preview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	SourceViewMode
)

// CardFunc renders the card for a URL. It may block on network access.
type CardFunc func(url string) string

// cardRenderedMsg delivers a card rendered in the background.
type cardRenderedMsg struct {
	index int
	html  string
}

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	items         []Item
	cards         map[int]string
	render        CardFunc
	cursor        int
	viewMode      ViewMode
	sourceName    string
	width         int
	height        int
	selectedIndex int // Index of the item currently being viewed in detail
}

// NewModel creates a new preview model. render may be nil, in which case
// no cards are shown.
func NewModel(items []Item, sourceName string, render CardFunc) Model {
	return Model{
		items:         items,
		cards:         make(map[int]string),
		render:        render,
		cursor:        0,
		viewMode:      ListViewMode,
		sourceName:    sourceName,
		selectedIndex: -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case cardRenderedMsg:
		m.cards[msg.index] = msg.html
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ListViewMode:
			return m.updateListView(msg)
		case DetailViewMode, SourceViewMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

// updateListView handles key presses in list view mode
func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter":
		m.selectedIndex = m.cursor
		m.viewMode = DetailViewMode
		return m, m.renderCard(m.cursor)

	case "s":
		m.selectedIndex = m.cursor
		m.viewMode = SourceViewMode
		return m, m.renderCard(m.cursor)
	}

	return m, nil
}

// updateDetailView handles key presses in detail/source view modes
func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "s":
		// Toggle between detail and source views
		if m.viewMode == DetailViewMode {
			m.viewMode = SourceViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// renderCard returns a command rendering the card for item index, or nil when
// it is already known or there is no renderer.
func (m Model) renderCard(index int) tea.Cmd {
	if m.render == nil || index < 0 || index >= len(m.items) {
		return nil
	}
	if _, ok := m.cards[index]; ok {
		return nil
	}
	url := m.items[index].Match.URL
	render := m.render
	return func() tea.Msg {
		return cardRenderedMsg{index: index, html: render(url)}
	}
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case ListViewMode:
		return m.renderListView()
	case DetailViewMode:
		return m.renderDetailView()
	case SourceViewMode:
		return m.renderSourceView()
	}
	return ""
}

// renderListView renders the list view
func (m Model) renderListView() string {
	var b strings.Builder

	// Header
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	header := fmt.Sprintf("URL Preview - %s (%d candidates)", m.sourceName, len(m.items))
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	// Items list
	visibleStart := 0
	visibleEnd := len(m.items)

	// Calculate visible range if height is set
	if m.height > 0 {
		maxVisible := m.height - 6 // Account for header, footer, and padding
		if maxVisible < len(m.items) {
			// Keep cursor in the middle of the screen when possible
			visibleStart = max(m.cursor-maxVisible/2, 0)
			visibleEnd = visibleStart + maxVisible
			if visibleEnd > len(m.items) {
				visibleEnd = len(m.items)
				visibleStart = max(visibleEnd-maxVisible, 0)
			}
		}
	}

	for i := visibleStart; i < visibleEnd; i++ {
		line := FormatCompactListItem(i, m.items[i])

		if i == m.cursor {
			// Highlight selected item
			selectedStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("12")).
				Bold(true)
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	// Footer
	b.WriteString("\n")
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	footer := "↑/↓ or j/k: navigate • enter: card preview • s: markup view • q: quit"
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

// renderDetailView renders the detail view
func (m Model) renderDetailView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return "No item selected"
	}

	content := FormatDetailedItem(m.items[m.selectedIndex], m.cards[m.selectedIndex])

	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	footer := "esc: back to list • s: toggle markup view • q: quit"
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

// renderSourceView renders the matched markup and its replacement
func (m Model) renderSourceView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return "No item selected"
	}

	content := FormatSource(m.items[m.selectedIndex], m.cards[m.selectedIndex])

	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	b.WriteString(headerStyle.Render("Markup Preview"))
	b.WriteString("\n\n")
	b.WriteString(content)
	b.WriteString("\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	footer := "esc: back to list • s: toggle card view • q: quit"
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

// Run starts the Bubble Tea program. Keys are read from the terminal so the
// previewed content may come from stdin.
func Run(items []Item, sourceName string, render CardFunc) error {
	if len(items) == 0 {
		fmt.Println("No candidate URLs found")
		return nil
	}

	p := tea.NewProgram(NewModel(items, sourceName, render), tea.WithAltScreen(), tea.WithInputTTY())
	_, err := p.Run()
	return err
}
