// Package tui provides Bubble Tea models for tavernaplayer.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// WorkflowPickerModel lets the user choose one workflow from the catalog.
// Typing filters by title, category and description.
type WorkflowPickerModel struct {
	all          []portal.Descriptor
	query        string
	results      []portal.Descriptor
	selected     int
	quit         bool
	confirmed    bool
	width        int
	height       int
	scrollOffset int
}

// NewWorkflowPicker creates a picker over the given catalog entries.
func NewWorkflowPicker(workflows []portal.Descriptor) WorkflowPickerModel {
	m := WorkflowPickerModel{
		all:    workflows,
		width:  80,
		height: 24,
	}
	m.applyFilter()
	return m
}

// Init initializes the workflow picker model.
func (m WorkflowPickerModel) Init() tea.Cmd {
	return nil
}

// Update updates the workflow picker model.
func (m WorkflowPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quit = true
			return m, tea.Quit

		case tea.KeyEnter:
			if len(m.results) > 0 {
				m.confirmed = true
			}
			return m, tea.Quit

		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
				m.updateScrollOffset()
			}

		case tea.KeyDown:
			if m.selected < len(m.results)-1 {
				m.selected++
				m.updateScrollOffset()
			}

		case tea.KeyHome:
			m.selected = 0
			m.scrollOffset = 0

		case tea.KeyEnd:
			m.selected = max(len(m.results)-1, 0)
			m.updateScrollOffset()

		case tea.KeyBackspace:
			if m.query != "" {
				runes := []rune(m.query)
				m.query = string(runes[:len(runes)-1])
				m.applyFilter()
			}

		case tea.KeySpace:
			m.query += " "
			m.applyFilter()

		case tea.KeyRunes:
			m.query += string(msg.Runes)
			m.applyFilter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateScrollOffset()
	}

	return m, nil
}

// applyFilter recomputes the results for the current query.
func (m *WorkflowPickerModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.query))
	m.results = nil
	for _, d := range m.all {
		if q == "" || matches(d, q) {
			m.results = append(m.results, d)
		}
	}
	m.selected = 0
	m.scrollOffset = 0
}

func matches(d portal.Descriptor, q string) bool {
	for _, field := range []string{d.Title, d.Category, d.Description, fmt.Sprint(d.ID)} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// updateScrollOffset updates the scroll offset to keep the selected item visible.
func (m *WorkflowPickerModel) updateScrollOffset() {
	maxVisible := m.maxVisibleItems()
	if m.selected < m.scrollOffset {
		m.scrollOffset = m.selected
	} else if m.selected >= m.scrollOffset+maxVisible {
		m.scrollOffset = m.selected - maxVisible + 1
	}
}

// maxVisibleItems returns the maximum number of visible items.
func (m *WorkflowPickerModel) maxVisibleItems() int {
	// Reserve space for header (2), filter bar (2), footer (2), padding (2)
	return max(m.height-8, 1)
}

// View renders the workflow picker model.
func (m WorkflowPickerModel) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true).
		Render("Workflows")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderFilterBar())
	b.WriteString("\n\n")

	b.WriteString(m.renderResults())
	b.WriteString("\n")

	b.WriteString(m.renderFooter())

	return b.String()
}

// renderFilterBar renders the filter input bar.
func (m WorkflowPickerModel) renderFilterBar() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	bar := style.Render("/" + m.query)

	info := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(fmt.Sprintf("%d of %d", len(m.results), len(m.all)))

	width := max(m.width-lipgloss.Width(bar)-lipgloss.Width(info)-2, 0)
	middle := lipgloss.NewStyle().Width(width).Render(" ")
	return lipgloss.JoinHorizontal(lipgloss.Top, bar, middle, info)
}

// renderResults renders the results list.
func (m WorkflowPickerModel) renderResults() string {
	if len(m.results) == 0 {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		return style.Render("No workflows match.")
	}

	start := m.scrollOffset
	end := min(start+m.maxVisibleItems(), len(m.results))

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(m.results[i], i == m.selected))
		b.WriteString("\n")
	}
	return b.String()
}

// renderItem renders a single catalog entry.
func (m WorkflowPickerModel) renderItem(d portal.Descriptor, selected bool) string {
	style := lipgloss.NewStyle()
	if selected {
		style = style.
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("59")).
			Padding(0, 1)
	} else {
		style = style.
			Foreground(lipgloss.Color("242"))
	}

	title := d.Title
	if title == "" {
		title = fmt.Sprintf("workflow %d", d.ID)
	}

	item := fmt.Sprintf("%4d  %s", d.ID, title)
	if d.Category != "" {
		item += "  " + lipgloss.NewStyle().Faint(true).Render(d.Category)
	}
	return style.Render(item)
}

// renderFooter renders the help footer.
func (m WorkflowPickerModel) renderFooter() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	return style.Render("↑: up • ↓: down • type to filter • enter: select • esc: quit")
}

// DidQuit returns true if the user quit without selecting.
func (m WorkflowPickerModel) DidQuit() bool {
	return m.quit
}

// DidConfirm returns true if the user confirmed a selection.
func (m WorkflowPickerModel) DidConfirm() bool {
	return m.confirmed
}

// Selected returns the highlighted workflow, or nil when nothing matches.
func (m WorkflowPickerModel) Selected() *portal.Descriptor {
	if len(m.results) == 0 || m.selected < 0 || m.selected >= len(m.results) {
		return nil
	}
	d := m.results[m.selected]
	return &d
}
