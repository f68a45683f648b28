package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/jeanpaul/fleet/internal/engine"
)

// EditFileTool writes a whole file or replaces one unique snippet in it and
// returns the change as a unified diff.
type EditFileTool struct {
	Cwd string
}

type editFileArgs struct {
	Path      string  `json:"path"`
	Content   *string `json:"content,omitempty"`
	OldString string  `json:"old_string,omitempty"`
	NewString string  `json:"new_string,omitempty"`
}

func (f *EditFileTool) Name() string { return "edit_file" }
func (f *EditFileTool) Description() string {
	return "Write or edit a file. Provide 'content' to overwrite the entire file, or 'old_string' and 'new_string' to make a targeted replacement."
}

func (f *EditFileTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "File path to write to"},
			"content":    map[string]any{"type": "string", "description": "Full file content (overwrites entire file)"},
			"old_string": map[string]any{"type": "string", "description": "Text to find and replace"},
			"new_string": map[string]any{"type": "string", "description": "Replacement text"},
		},
		"required": []string{"path"},
	}
}

func (f *EditFileTool) Announce(callID, rawArgs string) engine.EventMsg {
	var args editFileArgs
	_ = json.Unmarshal([]byte(rawArgs), &args)
	return engine.PatchApplyBegin{CallID: callID, Files: []string{args.Path}}
}

func (f *EditFileTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args editFileArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	path := resolvePath(f.Cwd, args.Path)

	before := ""
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		before = string(data)
	case errors.Is(err, fs.ErrNotExist) && args.Content != nil:
	default:
		return Result{Error: err.Error()}, nil
	}

	var after string
	switch {
	case args.OldString != "":
		switch strings.Count(before, args.OldString) {
		case 0:
			return Result{Error: "old_string not found in file"}, nil
		case 1:
			after = strings.Replace(before, args.OldString, args.NewString, 1)
		default:
			return Result{Error: "old_string matches multiple locations; provide more context to make it unique"}, nil
		}
	case args.Content != nil:
		after = *args.Content
	default:
		return Result{Error: "provide either 'content' or 'old_string'"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Result{Error: err.Error()}, nil
	}
	if err := os.WriteFile(path, []byte(after), 0644); err != nil {
		return Result{Error: err.Error()}, nil
	}

	diff := unifiedDiff(args.Path, before, after)
	if diff == "" {
		return Result{Output: "No changes."}, nil
	}
	return Result{Output: diff}, nil
}

func unifiedDiff(name, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(name), before, after)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+name, "b/"+name, before, edits))
}
