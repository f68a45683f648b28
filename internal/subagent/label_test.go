package subagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatExecLabel(t *testing.T) {
	tests := []struct {
		name    string
		command []string
		want    string
	}{
		{"login shell wrapper", []string{"bash", "-lc", "go test ./... | tail"}, "go test ./... | tail"},
		{"plain argv", []string{"git", "status", "--short"}, "git status --short"},
		{"other shell", []string{"sh", "-c", "ls"}, "sh -c ls"},
		{"too short", []string{"bash", "-lc"}, "bash -lc"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExecLabel(tt.command))
		})
	}
}

func TestTitleFromTask(t *testing.T) {
	title, ok := titleFromTask("\n  \n  Fix the flaky test \nin pkg/x")
	assert.True(t, ok)
	assert.Equal(t, "Fix the flaky test", title)

	_, ok = titleFromTask(" \n\t")
	assert.False(t, ok)
}
