package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "chat", "templates", "skills", "history", "doctor"} {
		assert.Contains(t, names, want)
	}

	cmd, _, err := rootCmd.Find([]string{"templates", "add"})
	require.NoError(t, err)
	assert.Equal(t, "add", cmd.Name())

	flag := runCmd.Flags().Lookup("template")
	require.NotNil(t, flag)
	assert.Equal(t, "t", flag.Shorthand)
}

func TestRunRejectsBlankTask(t *testing.T) {
	err := runRun(runCmd, []string{"  "})
	assert.EqualError(t, err, "task must not be empty")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Look around.", firstLine("\n  Look around.\nThen report."))
	assert.Equal(t, strings.Repeat("x", 59)+"…", firstLine(strings.Repeat("x", 70)))
	assert.Equal(t, "-", orDash(""))
}

func TestNewTable(t *testing.T) {
	out := newTable("NAME", "PATH").Rows([]string{"lint", "/skills/lint/SKILL.md"}).String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "/skills/lint/SKILL.md")
}
