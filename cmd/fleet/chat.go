package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeanpaul/fleet/internal/headless"
	"github.com/jeanpaul/fleet/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Run one prompt in a session that can delegate to sub-agents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func runChat(_ *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parent := a.parentConfig(true)
	doc, err := a.templates.ProjectDoc(ctx)
	if err != nil {
		return fmt.Errorf("read project docs: %w", err)
	}
	parent.UserInstructions = doc

	// Children run on their own engine; only the parent sees the sub-agent tools.
	mgr := a.manager(a.engine(nil))
	updates := make(chan types.SubAgentsUpdate, 64)
	mgr.SetEventSender(updates)
	done := make(chan struct{})
	go func() {
		headless.Progress(updates, os.Stderr)
		close(done)
	}()
	defer func() {
		mgr.SetEventSender(nil)
		close(updates)
		<-done
	}()

	sess, err := a.engine(mgr.Bind(a.cfg.ModelDefaults(), parent)).Start(ctx, parent)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Close()

	err = headless.Chat(ctx, sess, strings.Join(args, " "), a.cwd, a.cfg.ModelDefaults(), os.Stdout, os.Stderr)

	// Sub-agents do not outlive the parent session.
	for _, s := range mgr.List() {
		if s.Status == types.StatusRunning {
			mgr.Cancel(s.ID)
		}
	}
	return err
}
