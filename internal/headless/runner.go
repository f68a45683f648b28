// Package headless drives sessions and sub-agents without a terminal UI.
// Answers go to out; progress and tool activity go to progress.
package headless

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/subagent"
)

// Chat runs one turn of a parent session and streams its output.
// Interrupting ctx sends an Interrupt and waits for the turn to end.
func Chat(ctx context.Context, sess engine.Session, prompt, cwd string, defaults engine.ModelDefaults, out, progress io.Writer) error {
	id, err := sess.Submit(ctx, engine.UserTurn{
		Items:   []engine.InputItem{engine.TextInput{Text: prompt}},
		Cwd:     cwd,
		Model:   defaults.Model,
		Effort:  defaults.Effort,
		Summary: defaults.Summary,
	})
	if err != nil {
		return fmt.Errorf("submit prompt: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_, _ = sess.Submit(context.Background(), engine.Interrupt{})
	})
	defer stop()

	for {
		ev, err := sess.NextEvent(context.Background())
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		switch msg := ev.Msg.(type) {
		case engine.AgentMessage:
			fmt.Fprintln(out, msg.Message)
		case engine.AgentReasoning:
			fmt.Fprintln(progress, msg.Text)
		case engine.PlanUpdate:
			for _, step := range msg.Args.Plan {
				fmt.Fprintf(progress, "[plan] %s %s\n", step.Status, step.Step)
			}
		case engine.ExecCommandBegin:
			fmt.Fprintf(progress, "[Bash] %s\n", subagent.FormatExecLabel(msg.Command))
		case engine.ReadFileToolCall:
			fmt.Fprintf(progress, "[Read] %s\n", msg.Path)
		case engine.McpToolCallBegin:
			fmt.Fprintf(progress, "[MCP] %s::%s\n", msg.Server, msg.Tool)
		case engine.WebSearchBegin:
			fmt.Fprintf(progress, "[WebSearch] %s\n", msg.Query)
		case engine.PatchApplyBegin:
			fmt.Fprintf(progress, "[ApplyPatch] %v\n", msg.Files)
		case engine.TaskComplete:
			if ev.ID == id {
				return nil
			}
		case engine.Error:
			if ev.ID == id {
				return errors.New(msg.Message)
			}
		case engine.TurnAborted:
			if ev.ID == id {
				return context.Canceled
			}
		case engine.SessionConfigured, engine.TokenCount:
			// Nothing to show.
		default:
			fmt.Fprintf(progress, "[event] %T\n", msg)
		}
	}
}
