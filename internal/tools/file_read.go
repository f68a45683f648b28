package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeanpaul/fleet/internal/engine"
)

type ReadFileTool struct {
	Cwd string
}

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (f *ReadFileTool) Name() string { return "read_file" }
func (f *ReadFileTool) Description() string {
	return "Read the contents of a file. Returns numbered lines."
}

func (f *ReadFileTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string", "description": "File path, absolute or relative to the workspace"},
			"offset": map[string]any{"type": "integer", "minimum": 0, "description": "Line offset to start reading from (0-indexed)"},
			"limit":  map[string]any{"type": "integer", "minimum": 0, "description": "Max number of lines to read"},
		},
		"required": []string{"path"},
	}
}

func (f *ReadFileTool) Announce(callID, rawArgs string) engine.EventMsg {
	var args readFileArgs
	_ = json.Unmarshal([]byte(rawArgs), &args)
	return engine.ReadFileToolCall{CallID: callID, Path: args.Path}
}

func (f *ReadFileTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args readFileArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	path := resolvePath(f.Cwd, args.Path)
	content, isDoc, err := documentText(path)
	if !isDoc {
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	}
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	lines := strings.Split(content, "\n")
	start := args.Offset
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if args.Limit > 0 && start+args.Limit < end {
		end = start + args.Limit
	}
	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%4d\t%s\n", i+1, lines[i])
	}
	return Result{Output: sb.String()}, nil
}

// resolvePath makes p absolute against cwd.
func resolvePath(cwd, p string) string {
	if filepath.IsAbs(p) || cwd == "" {
		return p
	}
	return filepath.Join(cwd, p)
}
