package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jeanpaul/fleet/internal/templates"
	"github.com/jeanpaul/fleet/internal/tui"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the sub-agent templates visible from the current directory",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.templates.Load(context.Background())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, t := range list {
			rows = append(rows, []string{t.Name, orDash(t.Model), orDash(strings.Join(t.Skills, ", ")), firstLine(t.Instructions)})
		}
		fmt.Println(newTable("NAME", "MODEL", "SKILLS", "INSTRUCTIONS").Rows(rows...))
		return nil
	},
}

var (
	personaModel  string
	personaSkills []string
)

var templatesAddCmd = &cobra.Command{
	Use:   "add <name> <instructions>",
	Short: "Save a persona template to the agents directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		t := templates.Template{Name: args[0], Instructions: args[1], Model: personaModel, Skills: personaSkills}
		if err := templates.SavePersona(a.cfg.Templates.AgentsDir, t); err != nil {
			return err
		}
		fmt.Printf("Saved template %s to %s\n", t.Name, a.cfg.Templates.AgentsDir)
		return nil
	},
}

var templatesRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a persona template",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return templates.DeletePersona(a.cfg.Templates.AgentsDir, args[0])
	},
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List the skills visible from the current directory",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		var rows [][]string
		for _, s := range a.skills.Resolve(a.cwd) {
			rows = append(rows, []string{s.Name, orDash(s.Description), s.Path})
		}
		fmt.Println(newTable("NAME", "DESCRIPTION", "PATH").Rows(rows...))
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sub-agent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.cfg.History.Path == "" {
			return fmt.Errorf("history is disabled (history.path is empty)")
		}
		if err := a.openHistory(); err != nil {
			return err
		}

		records, err := a.history.List(historyLimit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			tokens := "?"
			if r.TotalTokens != nil {
				tokens = strconv.FormatInt(*r.TotalTokens, 10)
			}
			result := "-"
			if r.Result != nil {
				result = firstLine(*r.Result)
			}
			rows = append(rows, []string{
				r.FinishedAt.Local().Format("2006-01-02 15:04"),
				r.Template, r.Title, r.Status.String(),
				strconv.Itoa(r.ToolUses), tokens, result,
			})
		}
		fmt.Println(newTable("FINISHED", "TEMPLATE", "TITLE", "STATUS", "TOOLS", "TOKENS", "RESULT").Rows(rows...))
		return nil
	},
}

func init() {
	templatesAddCmd.Flags().StringVar(&personaModel, "model", "", "model override for this template")
	templatesAddCmd.Flags().StringSliceVar(&personaSkills, "skill", nil, "skill preset to load (repeatable)")
	templatesCmd.AddCommand(templatesAddCmd, templatesRmCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.DarkGreen)).
		Headers(headers...)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return line
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
