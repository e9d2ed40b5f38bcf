package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/list"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
)

// recordItem represents one dataset record in the selector list.
type recordItem struct {
	root     string
	dataType string
	status   string
	files    int
	size     int64
	producer string
}

func (i recordItem) Title() string {
	mark := Dim.Render("[ ] ")
	switch i.status {
	case string(catalog.StatusAccepted):
		mark = Success.Render("[✓] ")
	case string(catalog.StatusFlagged):
		mark = Warning.Render("[!] ")
	}
	return mark + i.root
}

func (i recordItem) Description() string {
	parts := []string{
		Dim.Render(i.dataType),
		Dim.Render(fmt.Sprintf("%d file(s)", i.files)),
		Dim.Render(FormatBytes(i.size)),
	}
	if i.producer != "" {
		parts = append(parts, Dim.Render("by ")+i.producer)
	}
	return strings.Join(parts, " · ")
}

func (i recordItem) FilterValue() string { return i.root + " " + i.producer }

// recordSelectorModel is the Bubble Tea model for picking one record.
type recordSelectorModel struct {
	textInput textinput.Model
	list      list.Model

	all       []recordItem
	filtered  []list.Item
	chosen    string
	quitting  bool
	confirmed bool
}

func newRecordSelector(records []*catalog.Record) *recordSelectorModel {
	ti := textinput.New()
	ti.Placeholder = "Filter datasets..."
	ti.Focus()
	ti.CharLimit = 156
	ti.SetWidth(50)

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(3)
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorHighlight).
		BorderForeground(ColorPrimary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorTextDim).
		BorderForeground(ColorPrimary)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Select Dataset"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false) // filtering runs through the text input
	l.SetShowHelp(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)

	m := &recordSelectorModel{textInput: ti, list: l}
	for _, r := range records {
		m.all = append(m.all, recordItem{
			root:     r.Root,
			dataType: string(r.Type),
			status:   string(r.Status),
			files:    len(r.Files),
			size:     r.SizeBytes(),
			producer: r.FieldString(catalog.FieldProducer),
		})
	}
	m.applyFilter("")
	return m
}

func (m *recordSelectorModel) applyFilter(query string) {
	query = strings.ToLower(strings.TrimSpace(query))
	m.filtered = m.filtered[:0]
	for _, item := range m.all {
		if query == "" || strings.Contains(strings.ToLower(item.FilterValue()), query) {
			m.filtered = append(m.filtered, item)
		}
	}
	m.list.SetItems(m.filtered)
}

func (m *recordSelectorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *recordSelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.textInput.Focused() {
			switch msg.String() {
			case "ctrl+c", "esc":
				m.quitting = true
				return m, tea.Quit
			case "enter", "down", "up":
				if len(m.filtered) > 0 {
					m.textInput.Blur()
					var cmd tea.Cmd
					m.list, cmd = m.list.Update(msg)
					return m, cmd
				}
				return m, nil
			default:
				var cmd tea.Cmd
				m.textInput, cmd = m.textInput.Update(msg)
				m.applyFilter(m.textInput.Value())
				return m, cmd
			}
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(recordItem); ok {
				m.chosen = item.root
				m.confirmed = true
			}
			m.quitting = true
			return m, tea.Quit
		case "/", "i":
			m.textInput.Focus()
			return m, textinput.Blink
		default:
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *recordSelectorModel) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}

	var b strings.Builder
	b.WriteString(Dim.Render("Filter: "))
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.list.View())
	b.WriteString("\n\n")

	helpStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	if m.textInput.Focused() {
		b.WriteString(helpStyle.Render("↑/↓: move to list · esc: cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓: navigate · enter: choose · /: filter · esc: cancel"))
	}
	return tea.NewView(b.String())
}

// RunRecordSelector shows an interactive picker over records and returns
// the chosen root. Aborting returns apperr.ErrCancelled.
func RunRecordSelector(records []*catalog.Record) (string, error) {
	p := tea.NewProgram(newRecordSelector(records))
	m, err := p.Run()
	if err != nil {
		return "", err
	}
	sel := m.(*recordSelectorModel)
	if !sel.confirmed {
		return "", apperr.ErrCancelled
	}
	return sel.chosen, nil
}

// FormatBytes renders a byte count in a compact human unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
