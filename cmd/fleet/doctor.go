package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeanpaul/fleet/internal/health"
	"github.com/jeanpaul/fleet/internal/tui"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(tui.Green).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(tui.Red).Bold(true)
	dotStyle  = lipgloss.NewStyle().Foreground(tui.DarkGreen)
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured providers and model are reachable",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		names := make([]string, 0, len(a.cfg.Providers))
		for name := range a.cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)

		var defaultStatus health.Status
		for _, name := range names {
			p := a.cfg.Providers[name]
			label := name
			if name == a.cfg.DefaultProvider {
				label += " (default)"
			}
			fmt.Printf("  %s %s ... ", dotStyle.Render("●"), label)
			s := health.Check(context.Background(), name, p.BaseURL, p.APIKey)
			if name == a.cfg.DefaultProvider {
				defaultStatus = s
			}
			if s.Reachable {
				fmt.Printf("%s %s\n", okStyle.Render("✓ OK"), tui.HelpStyle.Render(fmt.Sprintf("(%d models) %s", len(s.Models), s.Latency.Round(time.Millisecond))))
			} else {
				fmt.Println(failStyle.Render("✗ " + s.Error))
			}
		}

		fmt.Printf("  %s model %s ... ", dotStyle.Render("●"), a.cfg.DefaultModel)
		if err := health.CheckModel(defaultStatus, a.cfg.DefaultModel); err != nil {
			fmt.Println(failStyle.Render("✗ " + err.Error()))
			return errors.New("default provider is not usable")
		}
		fmt.Println(okStyle.Render("✓ available"))
		return nil
	},
}
