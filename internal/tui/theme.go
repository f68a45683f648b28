package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Core palette
	Green       = lipgloss.Color("#00FF41")
	BrightGreen = lipgloss.Color("#39FF14")
	MedGreen    = lipgloss.Color("#00C832")
	DarkGreen   = lipgloss.Color("#008F11")
	DimGreen    = lipgloss.Color("#003B00")
	Cyan        = lipgloss.Color("#00D4AA")
	MidGray     = lipgloss.Color("#3a3a4e")
	LightGray   = lipgloss.Color("#aaaaaa")
	White       = lipgloss.Color("#e0e0e0")
	Red         = lipgloss.Color("#FF4136")
	Gold        = lipgloss.Color("#FFD700")

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(BrightGreen)

	HelpStyle = lipgloss.NewStyle().
			Foreground(DarkGreen)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DarkGreen).
			Padding(0, 1)
)

// Styles colors the parts of the sub-agent tree.
type Styles struct {
	Header     lipgloss.Style
	Branch     lipgloss.Style
	Title      lipgloss.Style
	Selected   lipgloss.Style
	Meta       lipgloss.Style
	Activity   lipgloss.Style
	Transcript lipgloss.Style
	Completed  lipgloss.Style
	Failed     lipgloss.Style
	Canceled   lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:     lipgloss.NewStyle().Foreground(Green).Bold(true),
		Branch:     lipgloss.NewStyle().Foreground(DimGreen),
		Title:      lipgloss.NewStyle().Foreground(White).Bold(true),
		Selected:   lipgloss.NewStyle().Foreground(BrightGreen).Bold(true).Underline(true),
		Meta:       lipgloss.NewStyle().Foreground(LightGray),
		Activity:   lipgloss.NewStyle().Foreground(Cyan),
		Transcript: lipgloss.NewStyle().Foreground(MidGray),
		Completed:  lipgloss.NewStyle().Foreground(MedGreen),
		Failed:     lipgloss.NewStyle().Foreground(Red).Bold(true),
		Canceled:   lipgloss.NewStyle().Foreground(Gold),
	}
}

// PlainStyles renders without any decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Branch: plain, Title: plain, Selected: plain, Meta: plain,
		Activity: plain, Transcript: plain, Completed: plain, Failed: plain, Canceled: plain,
	}
}
