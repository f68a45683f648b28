package tui

import (
	"fmt"
	"strings"

	"github.com/jeanpaul/fleet/internal/types"
)

// RenderTree draws a snapshot as a tree of sub-agents. marker prefixes the
// header while agents are running. selected highlights one row; pass -1 for
// none.
func RenderTree(u types.SubAgentsUpdate, st Styles, marker string, selected int) string {
	var b strings.Builder

	noun := "agents"
	if len(u.Agents) == 1 {
		noun = "agent"
	}
	if u.RunningCount > 0 {
		if marker != "" {
			b.WriteString(marker + " ")
		}
		b.WriteString(st.Header.Render(fmt.Sprintf("Running %d Task %s…", u.RunningCount, pluralize(u.RunningCount, "agent"))))
	} else {
		b.WriteString(st.Header.Render(fmt.Sprintf("Finished %d Task %s", len(u.Agents), noun)))
	}
	b.WriteString("\n")

	for i, a := range u.Agents {
		last := i == len(u.Agents)-1
		branch, indent := "├─", "│  "
		if last {
			branch, indent = "└─", "   "
		}

		title := st.Title.Render(a.Title)
		if i == selected {
			title = st.Selected.Render(a.Title)
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			st.Branch.Render(branch),
			title,
			st.Meta.Render(fmt.Sprintf("· %s · %s", pluralize(a.ToolUses, "tool use"), formatTokens(a.TotalTokens))),
		)
		fmt.Fprintf(&b, "%s%s\n", st.Branch.Render(indent), activityLine(a, st))
		for _, line := range a.Transcript {
			fmt.Fprintf(&b, "%s   %s\n", st.Branch.Render(indent), st.Transcript.Render(line))
		}
		if a.TranscriptTruncated {
			fmt.Fprintf(&b, "%s   %s\n", st.Branch.Render(indent), st.Transcript.Render("(older transcript truncated)"))
		}
	}
	return b.String()
}

func activityLine(a types.SubAgentUIItem, st Styles) string {
	const prefix = "⎿  "
	switch a.Status {
	case types.StatusCompleted:
		return prefix + st.Completed.Render("Completed")
	case types.StatusFailed:
		return prefix + st.Failed.Render("Failed")
	case types.StatusCanceled:
		return prefix + st.Canceled.Render("Canceled")
	}
	if a.LastActivity == nil {
		return prefix + st.Activity.Render("Starting…")
	}
	return prefix + st.Activity.Render(fmt.Sprintf("%s: %s", a.LastActivity.Kind, firstLine(a.LastActivity.Label)))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// formatTokens prints a token total compactly; "?" when unknown.
func formatTokens(n *int64) string {
	switch {
	case n == nil:
		return "? tokens"
	case *n < 1000:
		return fmt.Sprintf("%d tokens", *n)
	case *n < 1_000_000:
		return fmt.Sprintf("%.1fk tokens", float64(*n)/1000)
	default:
		return fmt.Sprintf("%.1fM tokens", float64(*n)/1_000_000)
	}
}
