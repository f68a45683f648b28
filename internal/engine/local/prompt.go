package local

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/tools"
)

// systemPrompt describes the environment and the registered tools.
func systemPrompt(cfg engine.Config, defs []tools.Def) string {
	cwd := cfg.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a coding agent running in the user's terminal. You work autonomously until the task is done, then reply with a short summary of what you did.

## Environment
- Working directory: %s
- OS: %s/%s

## Available Tools
`, cwd, runtime.GOOS, runtime.GOARCH)
	for _, d := range defs {
		fmt.Fprintf(&sb, "- **%s**: %s\n", d.Name, d.Description)
	}
	sb.WriteString(`
## Guidelines
- Read files before editing them.
- Keep a plan with update_plan for multi-step work.
- Be concise and direct.
`)
	if cfg.Features.SubAgents {
		sb.WriteString("- Delegate independent sub-tasks with spawn_agent and check on them with poll_agent.\n")
	}
	if s := strings.TrimSpace(cfg.UserInstructions); s != "" {
		sb.WriteString("\n## Project Instructions\n")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return sb.String()
}

// userText flattens a turn's items into one user message. Skills are inlined
// from their SKILL.md files; unreadable or disabled ones are reported back.
func userText(items []engine.InputItem, skillsEnabled bool) (string, []string) {
	var sb strings.Builder
	var problems []string
	for _, item := range items {
		switch it := item.(type) {
		case engine.TextInput:
			sb.WriteString(it.Text)
		case engine.SkillInput:
			if !skillsEnabled {
				problems = append(problems, fmt.Sprintf("skill %s ignored: skills are disabled", it.Name))
				continue
			}
			data, err := os.ReadFile(it.Path)
			if err != nil {
				problems = append(problems, fmt.Sprintf("skill %s: %v", it.Name, err))
				continue
			}
			fmt.Fprintf(&sb, "<skill name=%q>\n%s\n</skill>\n", it.Name, strings.TrimSpace(string(data)))
		}
	}
	return sb.String(), problems
}
