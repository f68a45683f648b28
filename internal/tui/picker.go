package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeanpaul/fleet/internal/templates"
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

// Picker lets the user choose a template when none was given on the
// command line.
type Picker struct {
	list     list.Model
	choice   string
	quitting bool
}

func NewPicker(ts []templates.Template) Picker {
	items := make([]list.Item, 0, len(ts))
	for _, t := range ts {
		items = append(items, item{title: t.Name, desc: summarize(t.Instructions)})
	}

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(Green).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(Green).PaddingLeft(1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.Foreground(DimGreen)

	l := list.New(items, d, 60, 16)
	l.Title = "Sub-agent template"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().Foreground(Green).Bold(true).MarginLeft(2)

	return Picker{list: l}
}

// Choice is the selected template name, empty if the user backed out.
func (p Picker) Choice() string { return p.choice }

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.list.SetSize(msg.Width, max(msg.Height-2, 4))
		return p, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if p.list.FilterState() != list.Filtering {
				p.quitting = true
				return p, tea.Quit
			}
		case "enter":
			if p.list.FilterState() != list.Filtering {
				if it, ok := p.list.SelectedItem().(item); ok {
					p.choice = it.title
				}
				p.quitting = true
				return p, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p Picker) View() string {
	if p.quitting {
		return ""
	}
	return BoxStyle.Render(p.list.View())
}

// summarize returns the first line of s, shortened for a list row.
func summarize(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return line
}
