package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeanpaul/fleet/internal/headless"
	"github.com/jeanpaul/fleet/internal/subagent"
	"github.com/jeanpaul/fleet/internal/tui"
	"github.com/jeanpaul/fleet/internal/types"
)

var (
	runTemplates []string
	runHeadless  bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <task>",
	Short: "Spawn one sub-agent per template for a task and watch them",
	Example: `  fleet run -t inspect -t tests "add coverage for the parser"
  fleet run --headless -t docs "document the public API"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runTemplates, "template", "t", nil, "template to spawn (repeatable)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "print progress instead of the terminal UI")
}

func runRun(_ *cobra.Command, args []string) error {
	task := strings.Join(args, " ")
	if strings.TrimSpace(task) == "" {
		return errors.New("task must not be empty")
	}

	a, err := newApp(!runHeadless)
	if err != nil {
		return err
	}
	defer a.Close()

	names := runTemplates
	if len(names) == 0 {
		if runHeadless {
			return errors.New("at least one --template is required with --headless")
		}
		name, err := pickTemplate(a)
		if err != nil || name == "" {
			return err
		}
		names = []string{name}
	}

	mgr := a.manager(a.engine(nil))
	updates := make(chan types.SubAgentsUpdate, 64)
	mgr.SetEventSender(updates)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := spawnAll(ctx, mgr, a, names, task)
	if err != nil {
		return err
	}

	if runHeadless {
		done := make(chan struct{})
		go func() {
			headless.Progress(updates, os.Stderr)
			close(done)
		}()
		_, err = headless.Wait(ctx, mgr, ids, os.Stdout)
		mgr.SetEventSender(nil)
		close(updates)
		<-done
		return err
	}

	if _, err := tea.NewProgram(tui.New(updates, mgr), tea.WithAltScreen()).Run(); err != nil {
		for _, id := range ids {
			mgr.Cancel(id)
		}
		return fmt.Errorf("terminal UI: %w", err)
	}
	mgr.SetEventSender(nil)
	_, err = headless.Wait(ctx, mgr, ids, os.Stdout)
	return err
}

// spawnAll starts every template. On failure the ones already started are
// canceled.
func spawnAll(ctx context.Context, mgr *subagent.Manager, a *app, names []string, task string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := mgr.Spawn(ctx, name, task, a.cfg.ModelDefaults(), a.parentConfig(false))
		if err != nil {
			for _, started := range ids {
				mgr.Cancel(started)
			}
			return nil, fmt.Errorf("spawn %s: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pickTemplate(a *app) (string, error) {
	list, err := a.templates.Load(context.Background())
	if err != nil {
		return "", err
	}
	final, err := tea.NewProgram(tui.NewPicker(list)).Run()
	if err != nil {
		return "", fmt.Errorf("template picker: %w", err)
	}
	return final.(tui.Picker).Choice(), nil
}
