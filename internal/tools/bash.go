package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/jeanpaul/fleet/internal/engine"
)

const (
	defaultShellTimeout = 120
	maxShellOutput      = 64 << 10
)

// ShellTool runs a command through a login shell on a pseudo-terminal, so
// programs that check for a TTY behave as they would for a user.
type ShellTool struct {
	Cwd                string
	DisallowedCommands []string
}

type shellArgs struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

func (b *ShellTool) Name() string { return "shell" }
func (b *ShellTool) Description() string {
	return "Run a bash command in the workspace and return its combined output."
}

func (b *ShellTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to execute",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Timeout in seconds (default 120)",
			},
		},
		"required": []string{"command"},
	}
}

// Argv is the process invocation used for command.
func (b *ShellTool) Argv(command string) []string {
	return []string{"bash", "-lc", command}
}

func (b *ShellTool) Announce(callID, rawArgs string) engine.EventMsg {
	var args shellArgs
	_ = json.Unmarshal([]byte(rawArgs), &args)
	return engine.ExecCommandBegin{CallID: callID, Command: b.Argv(args.Command), Cwd: b.Cwd}
}

func (b *ShellTool) Execute(ctx context.Context, rawArgs string) (Result, error) {
	var args shellArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	if err := b.checkCommand(args.Command); err != nil {
		return Result{Error: err.Error()}, nil
	}

	timeout := defaultShellTimeout
	if args.Timeout > 0 {
		timeout = args.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	argv := b.Argv(args.Command)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = b.Cwd

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return Result{Error: "failed to start pty: " + err.Error()}, nil
	}
	defer func() { _ = ptmx.Close() }()

	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 && out.Len() < maxShellOutput {
			out.Write(buf[:n])
		}
		if err != nil {
			// Linux returns EIO once the child closes its side.
			if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) {
				break
			}
			return Result{Output: out.String(), Error: err.Error()}, nil
		}
	}

	output := strings.ReplaceAll(out.String(), "\r\n", "\n")
	if out.Len() >= maxShellOutput {
		output += "\n(output truncated)"
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Output: output, Error: fmt.Sprintf("command timed out after %ds", timeout)}, nil
		}
		return Result{Output: output, Error: err.Error()}, nil
	}
	return Result{Output: output}, nil
}

func (b *ShellTool) checkCommand(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return errors.New("command is empty")
	}
	baseCmd := extractBaseCommand(cmd)
	for _, blocked := range b.DisallowedCommands {
		if baseCmd == blocked || strings.Contains(cmd, blocked) {
			return fmt.Errorf("command %q is blocked by configuration", blocked)
		}
	}
	for _, d := range []string{"rm -rf /", "mkfs", "dd if=", ":(){:|:&};:"} {
		if strings.Contains(cmd, d) {
			return fmt.Errorf("potentially destructive command blocked: contains %q", d)
		}
	}
	return nil
}

// extractBaseCommand returns the program name of cmd, skipping leading
// VAR=value assignments and any path prefix.
func extractBaseCommand(cmd string) string {
	parts := strings.Fields(cmd)
	for _, p := range parts {
		if !strings.Contains(p, "=") {
			if idx := strings.LastIndex(p, "/"); idx >= 0 {
				p = p[idx+1:]
			}
			return p
		}
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return cmd
}
