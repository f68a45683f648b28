package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/fleet/internal/engine"
)

func TestShellTool_RunsInCwd(t *testing.T) {
	dir := t.TempDir()
	tool := &ShellTool{Cwd: dir}

	result, err := tool.Execute(context.Background(), `{"command": "pwd && echo hello"}`)
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.Contains(t, result.Output, dir)
	assert.Contains(t, result.Output, "hello")
	assert.NotContains(t, result.Output, "\r\n")
}

func TestShellTool_Timeout(t *testing.T) {
	tool := &ShellTool{}

	start := time.Now()
	result, err := tool.Execute(context.Background(), `{"command": "sleep 2", "timeout": 1}`)
	duration := time.Since(start)

	require.NoError(t, err)
	if result.Error == "" {
		t.Error("Expected execution error (timeout), got empty Result.Error")
	}
	if duration >= 2*time.Second {
		t.Errorf("Command took %v, expected ~1s (timeout)", duration)
	}
}

func TestShellTool_NonZeroExit(t *testing.T) {
	result, err := (&ShellTool{}).Execute(context.Background(), `{"command": "echo oops; exit 3"}`)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "oops")
	assert.Contains(t, result.Error, "exit status 3")
}

func TestShellTool_BlockedCommands(t *testing.T) {
	tool := &ShellTool{DisallowedCommands: []string{"curl"}}

	result, err := tool.Execute(context.Background(), `{"command": "FOO=1 /usr/bin/curl example.com"}`)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "blocked by configuration")

	result, err = tool.Execute(context.Background(), `{"command": "rm -rf / --no-preserve-root"}`)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "destructive")
}

func TestShellTool_Announce(t *testing.T) {
	tool := &ShellTool{Cwd: "/work"}
	ev := tool.Announce("call-1", `{"command": "go vet ./..."}`)
	assert.Equal(t, engine.ExecCommandBegin{
		CallID:  "call-1",
		Command: []string{"bash", "-lc", "go vet ./..."},
		Cwd:     "/work",
	}, ev)
}

func TestExtractBaseCommand(t *testing.T) {
	for in, want := range map[string]string{
		"ls -la":              "ls",
		"GOOS=linux go build": "go",
		"/usr/bin/env python": "env",
		"":                    "",
	} {
		if got := extractBaseCommand(in); got != want {
			t.Errorf("extractBaseCommand(%q) = %q, want %q", in, got, want)
		}
	}
	assert.True(t, strings.HasPrefix(extractBaseCommand("a=b"), "a"))
}
