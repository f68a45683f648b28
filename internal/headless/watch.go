package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/glamour"

	"github.com/jeanpaul/fleet/internal/tui"
	"github.com/jeanpaul/fleet/internal/types"
)

// ErrIncomplete is returned by Wait when a sub-agent did not complete.
var ErrIncomplete = errors.New("not every sub-agent completed")

// Controller is the part of the sub-agent manager Wait uses.
type Controller interface {
	Wait(ctx context.Context, id string) (types.SubAgentPoll, error)
	Cancel(id string) bool
}

// Progress prints what changed between snapshots until updates is closed.
func Progress(updates <-chan types.SubAgentsUpdate, w io.Writer) {
	seen := make(map[string]types.SubAgentUIItem)
	for u := range updates {
		for _, a := range u.Agents {
			printChanges(w, seen[a.ID], a)
			seen[a.ID] = a
		}
	}
}

func printChanges(w io.Writer, prev, cur types.SubAgentUIItem) {
	if prev.ID == "" {
		fmt.Fprintf(w, "[%s] started (%s)\n", cur.Title, cur.Template)
	}
	if cur.LastActivity != nil && (prev.LastActivity == nil || *prev.LastActivity != *cur.LastActivity || prev.ToolUses != cur.ToolUses) {
		fmt.Fprintf(w, "[%s] %s: %s\n", cur.Title, cur.LastActivity.Kind, cur.LastActivity.Label)
	}
	for _, line := range newLines(prev.Transcript, cur.Transcript) {
		fmt.Fprintf(w, "[%s] %s\n", cur.Title, line)
	}
	if cur.Status != prev.Status && cur.Status.Terminal() {
		fmt.Fprintf(w, "[%s] %s\n", cur.Title, cur.Status)
	}
}

// newLines returns the tail of cur that prev had not shown yet. The
// transcript is a sliding window, so the overlap is found by suffix match.
func newLines(prev, cur []string) []string {
	for k := min(len(prev), len(cur)); k > 0; k-- {
		if slices.Equal(prev[len(prev)-k:], cur[:k]) {
			return cur[k:]
		}
	}
	return cur
}

// Wait blocks until every id is terminal. If ctx ends first the remaining
// sub-agents are canceled. Results are rendered as markdown to out.
func Wait(ctx context.Context, ctl Controller, ids []string, out io.Writer) ([]types.SubAgentPoll, error) {
	polls := make([]types.SubAgentPoll, 0, len(ids))
	for _, id := range ids {
		p, err := ctl.Wait(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				return polls, err
			}
			ctl.Cancel(id)
			if p, err = ctl.Wait(context.Background(), id); err != nil {
				return polls, err
			}
		}
		polls = append(polls, p)
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return polls, fmt.Errorf("markdown renderer: %w", err)
	}
	incomplete := false
	for _, p := range polls {
		md := tui.ResultMarkdown(p)
		rendered, err := r.Render(md)
		if err != nil {
			rendered = md
		}
		fmt.Fprint(out, rendered)
		if p.Status != types.StatusCompleted {
			incomplete = true
		}
	}
	if incomplete {
		return polls, ErrIncomplete
	}
	return polls, nil
}
