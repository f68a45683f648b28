package subagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/skills"
	"github.com/jeanpaul/fleet/internal/templates"
	"github.com/jeanpaul/fleet/internal/types"
)

// runner drives one sub-agent from spawn to a terminal status.
type runner struct {
	m        *Manager
	id       string
	tmpl     templates.Template
	task     string
	defaults engine.ModelDefaults
	cfg      engine.Config
	// ctx is only a cancellation flag. Engine calls never use it, so a
	// runner blocked inside the engine is not interrupted by Cancel.
	ctx context.Context
}

func (r *runner) canceled() bool {
	return r.ctx.Err() != nil
}

func (r *runner) run() {
	log := r.m.log.With("id", r.id, "template", r.tmpl.Name)
	defer func() {
		if v := recover(); v != nil {
			log.Error("sub-agent panicked", "panic", v)
			r.m.fail(r.id, fmt.Sprintf("sub-agent panicked: %v", v))
		}
	}()

	status := r.drive()
	log.Info("sub-agent finished", "status", status)
}

// drive runs the session and returns the status the entry ended in.
func (r *runner) drive() types.SubAgentStatus {
	bg := context.Background()

	sess, err := r.m.engine.Start(bg, r.cfg)
	if err != nil {
		r.m.fail(r.id, fmt.Sprintf("failed to spawn sub-agent: %v", err))
		return r.status()
	}
	defer sess.Close()
	r.m.attachSession(r.id, sess)

	// The first event acknowledges session configuration. It is discarded,
	// errors included; a broken stream fails on the next read.
	_, _ = sess.NextEvent(bg)

	if r.canceled() {
		r.m.fail(r.id, "sub-agent was canceled before start")
		return r.status()
	}

	items, warnings := r.initialItems()
	model := r.tmpl.Model
	if model == "" {
		model = r.defaults.Model
	}
	subID, err := sess.Submit(bg, engine.UserTurn{
		Items:   items,
		Cwd:     r.cfg.Cwd,
		Model:   model,
		Effort:  r.defaults.Effort,
		Summary: r.defaults.Summary,
	})
	if err != nil {
		r.m.fail(r.id, append(warnings, fmt.Sprintf("failed to submit sub-agent task: %v", err))...)
		return r.status()
	}
	r.m.appendWarnings(r.id, warnings)

	for {
		if r.canceled() {
			_, _ = sess.Submit(bg, engine.Interrupt{})
		}
		ev, err := sess.NextEvent(bg)
		if err != nil {
			r.m.fail(r.id, fmt.Sprintf("sub-agent event stream failed: %v", err))
			return r.status()
		}
		if r.canceled() {
			r.m.markCanceled(r.id)
			return r.status()
		}
		if done := r.handle(subID, ev); done {
			return r.status()
		}
	}
}

// handle applies one event to the entry and reports whether the runner is
// finished.
func (r *runner) handle(subID string, ev engine.Event) bool {
	switch msg := ev.Msg.(type) {
	case engine.AgentMessage:
		r.m.appendMessage(r.id, msg.Message)
	case engine.PlanUpdate:
		r.m.appendPlanSuggestion(r.id, msg.Args)
	case engine.ExecCommandBegin:
		r.m.bumpToolUse(r.id, types.Activity{Kind: types.ActivityBash, Label: FormatExecLabel(msg.Command)})
	case engine.ReadFileToolCall:
		r.m.bumpToolUse(r.id, types.Activity{Kind: types.ActivityRead, Label: msg.Path})
	case engine.McpToolCallBegin:
		r.m.bumpToolUse(r.id, types.Activity{Kind: types.ActivityMcp, Label: msg.Server + "::" + msg.Tool})
	case engine.WebSearchBegin:
		r.m.bumpToolUse(r.id, types.Activity{Kind: types.ActivityWebSearch, Label: "web_search"})
	case engine.PatchApplyBegin:
		r.m.bumpToolUse(r.id, types.Activity{Kind: types.ActivityApplyPatch, Label: "apply_patch"})
	case engine.TokenCount:
		var total *int64
		if msg.Info != nil {
			v := msg.Info.Total.BlendedTotal()
			total = &v
		}
		r.m.setTotalTokens(r.id, total)
	case engine.TaskComplete:
		if ev.ID != subID {
			return false
		}
		r.m.complete(r.id, msg.LastAgentMessage)
		return true
	case engine.Error:
		if ev.ID != subID {
			return false
		}
		r.m.fail(r.id, msg.Message)
		return true
	case engine.SessionConfigured, engine.AgentReasoning, engine.TurnAborted:
		// Not tracked for sub-agents.
	default:
		r.m.log.Debug("ignored sub-agent event", "id", r.id, "event", fmt.Sprintf("%T", msg))
	}
	return false
}

// initialItems builds the first turn: instructions, skills, then the task.
func (r *runner) initialItems() ([]engine.InputItem, []string) {
	var items []engine.InputItem
	var warnings []string

	if strings.TrimSpace(r.tmpl.Instructions) != "" {
		items = append(items, engine.TextInput{Text: r.tmpl.Instructions})
	}

	if len(r.tmpl.Skills) > 0 {
		var available []skills.Skill
		if r.m.skills != nil {
			available = r.m.skills.Resolve(r.cfg.Cwd)
		}
		for _, name := range r.tmpl.Skills {
			s, ok := skills.Lookup(available, name)
			if !ok {
				warnings = append(warnings, "unknown skill preset: "+name)
				continue
			}
			items = append(items, engine.SkillInput{Name: s.Name, Path: s.Path})
		}
	}

	items = append(items, engine.TextInput{Text: r.task + "\n"})
	return items, warnings
}

func (r *runner) status() types.SubAgentStatus {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if e, ok := r.m.entries[r.id]; ok {
		return e.status
	}
	return types.StatusFailed
}
