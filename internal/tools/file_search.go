package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const maxGlobMatches = 200

// GlobTool lists files matching a doublestar pattern such as "**/*.go".
type GlobTool struct {
	Cwd string
}

type globArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

func (g *GlobTool) Name() string { return "glob_files" }
func (g *GlobTool) Description() string {
	return "Find files by glob pattern. Supports ** for recursive matching."
}

func (g *GlobTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "minLength": 1, "description": "Glob pattern (e.g. '**/*.go')"},
			"path":    map[string]any{"type": "string", "description": "Directory to search in (default: workspace)"},
		},
		"required": []string{"pattern"},
	}
}

func (g *GlobTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args globArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}

	base := g.Cwd
	if args.Path != "" {
		base = resolvePath(g.Cwd, args.Path)
	}
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return Result{Error: fmt.Sprintf("invalid path: %v", err)}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(abs), args.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return Result{Error: fmt.Sprintf("glob error: %v", err)}, nil
	}
	if len(matches) == 0 {
		return Result{Output: "No files matched the pattern."}, nil
	}
	sort.Strings(matches)

	truncated := len(matches) > maxGlobMatches
	if truncated {
		matches = matches[:maxGlobMatches]
	}
	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n(showing first %d matches)", maxGlobMatches)
	}
	return Result{Output: out}, nil
}
