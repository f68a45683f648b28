// Package tui renders live sub-agent state in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeanpaul/fleet/internal/types"
)

// Controller is what the observer needs to act on sub-agents.
type Controller interface {
	Cancel(id string) bool
	Poll(id string, includeMessages bool) (types.SubAgentPoll, bool)
}

var TreeSpinner = spinner.Spinner{
	Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	FPS:    time.Second / 10,
}

type updateMsg types.SubAgentsUpdate

type updatesClosedMsg struct{}

type Model struct {
	width, height int
	updates       <-chan types.SubAgentsUpdate
	ctl           Controller
	spinner       spinner.Model
	viewport      viewport.Model
	renderer      *glamour.TermRenderer
	styles        Styles

	snapshot   types.SubAgentsUpdate
	selected   int
	detail     bool
	detailText string
	status     string
	quitting   bool
}

func New(updates <-chan types.SubAgentsUpdate, ctl Controller) Model {
	sp := spinner.New()
	sp.Spinner = TreeSpinner
	sp.Style = SpinnerStyle

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		updates:  updates,
		ctl:      ctl,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		renderer: r,
		styles:   DefaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

// Snapshot is the most recent update the model has seen.
func (m Model) Snapshot() types.SubAgentsUpdate { return m.snapshot }

// Finished reports whether every spawned sub-agent reached a terminal state.
func (m Model) Finished() bool {
	return len(m.snapshot.Agents) > 0 && m.snapshot.RunningCount == 0
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1)
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(msg.Width-4, 20))); err == nil {
			m.renderer = r
		}
		m.refresh()
		return m, nil

	case updateMsg:
		m.snapshot = types.SubAgentsUpdate(msg)
		if m.selected >= len(m.snapshot.Agents) {
			m.selected = max(len(m.snapshot.Agents)-1, 0)
		}
		m.refresh()
		return m, m.waitForUpdate()

	case updatesClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		for _, a := range m.snapshot.Agents {
			if a.Status == types.StatusRunning {
				m.ctl.Cancel(a.ID)
			}
		}
		m.quitting = true
		return m, tea.Quit

	case "q", "esc":
		if m.detail {
			m.detail = false
			m.refresh()
			return m, nil
		}
		if m.Finished() || len(m.snapshot.Agents) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		m.status = "Sub-agents are still running. Press x to cancel one or ctrl+c to cancel all."
		return m, nil

	case "up", "k":
		if !m.detail && m.selected > 0 {
			m.selected--
			m.refresh()
			return m, nil
		}

	case "down", "j":
		if !m.detail && m.selected < len(m.snapshot.Agents)-1 {
			m.selected++
			m.refresh()
			return m, nil
		}

	case "x":
		if a, ok := m.current(); ok {
			if m.ctl.Cancel(a.ID) {
				m.status = fmt.Sprintf("Canceled %s.", a.Title)
			}
		}
		return m, nil

	case "enter":
		if a, ok := m.current(); ok && !m.detail {
			m.openDetail(a)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) current() (types.SubAgentUIItem, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Agents) {
		return types.SubAgentUIItem{}, false
	}
	return m.snapshot.Agents[m.selected], true
}

// openDetail shows the result and warnings of a finished sub-agent.
func (m *Model) openDetail(a types.SubAgentUIItem) {
	if !a.Status.Terminal() {
		m.status = fmt.Sprintf("%s is still running.", a.Title)
		return
	}
	p, ok := m.ctl.Poll(a.ID, false)
	if !ok {
		return
	}
	m.detailText = m.renderMarkdown(ResultMarkdown(p))
	m.detail = true
	m.status = ""
	m.refresh()
	m.viewport.GotoTop()
}

func (m Model) renderMarkdown(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// ResultMarkdown formats a finished sub-agent for display.
func ResultMarkdown(p types.SubAgentPoll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n*%s · %s*\n\n", p.Title, p.Template, p.Status)
	if p.Result != nil {
		b.WriteString(*p.Result)
		b.WriteString("\n")
	} else {
		b.WriteString("_No result._\n")
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func (m *Model) refresh() {
	if m.detail {
		m.viewport.SetContent(m.detailText)
		return
	}
	m.viewport.SetContent(RenderTree(m.snapshot, m.styles, m.spinner.View(), m.selected))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	if m.height > 0 {
		body = m.viewport.View()
	} else if m.detail {
		body = m.detailText
	} else {
		body = RenderTree(m.snapshot, m.styles, m.spinner.View(), m.selected)
	}

	var help string
	switch {
	case m.detail:
		help = "q back · ↑/↓ scroll"
	case m.Finished():
		help = "All sub-agents finished · enter show result · q quit"
	default:
		help = "↑/↓ select · enter show result · x cancel · ctrl+c cancel all"
	}
	if m.status != "" {
		help = m.status + "\n" + help
	}
	return body + "\n" + HelpStyle.Render(help)
}
