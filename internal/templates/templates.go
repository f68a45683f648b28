// Package templates discovers the named task templates sub-agents are
// started from.
//
// Templates come from two places. Persona files are YAML documents in the
// agents directory, one template per file. Project docs are AGENTS.md files
// from the project root down to the working directory (plus any configured
// globs); each may hold fenced blocks tagged "subagents" containing TOML
// [[agent]] tables. Later sources override earlier ones by name. When nothing
// is found the builtin set is used.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ProjectDocName is the per-directory instructions file.
	ProjectDocName = "AGENTS.md"
	// FenceTag marks template blocks inside project docs.
	FenceTag = "subagents"
)

// Template seeds a sub-agent's first turn.
type Template struct {
	Name         string   `toml:"name" yaml:"name"`
	Instructions string   `toml:"instructions" yaml:"instructions"`
	Skills       []string `toml:"skills" yaml:"skills,omitempty"`
	// Model overrides the caller's default model when non-empty.
	Model string `toml:"model" yaml:"model,omitempty"`
}

type blockFile struct {
	Agent []Template `toml:"agent"`
}

// Provider is what the sub-agent manager needs from a template source.
type Provider interface {
	Load(ctx context.Context) ([]Template, error)
	ProjectDoc(ctx context.Context) (string, error)
}

// Loader reads templates from the filesystem.
type Loader struct {
	Cwd       string
	AgentsDir string
	Globs     []string
}

func NewLoader(cwd, agentsDir string, globs []string) *Loader {
	return &Loader{Cwd: cwd, AgentsDir: agentsDir, Globs: globs}
}

// Load returns the merged, de-duplicated template set sorted by name.
func (l *Loader) Load(ctx context.Context) ([]Template, error) {
	byName := make(map[string]Template)

	if l.AgentsDir != "" {
		personas, err := LoadPersonas(l.AgentsDir)
		if err != nil {
			return nil, err
		}
		for _, t := range personas {
			byName[t.Name] = t
		}
	}

	paths, err := l.docPaths()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, block := range ExtractFencedBlocks(string(data), FenceTag) {
			var parsed blockFile
			if err := toml.Unmarshal([]byte(block), &parsed); err != nil {
				return nil, fmt.Errorf("parse sub-agent templates in %s: %w", path, err)
			}
			for _, t := range parsed.Agent {
				if strings.TrimSpace(t.Name) == "" {
					return nil, fmt.Errorf("parse sub-agent templates in %s: template without name", path)
				}
				byName[t.Name] = t
			}
		}
	}

	if len(byName) == 0 {
		for _, t := range Builtin() {
			byName[t.Name] = t
		}
	}

	out := make([]Template, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ProjectDoc concatenates the AGENTS.md files between the project root and
// the working directory, outermost first.
func (l *Loader) ProjectDoc(ctx context.Context) (string, error) {
	var parts []string
	for _, path := range l.agentsDocPaths() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// Find returns the template with the given name.
func Find(list []Template, name string) (Template, bool) {
	for _, t := range list {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

func (l *Loader) docPaths() ([]string, error) {
	paths := l.agentsDocPaths()
	if len(l.Globs) == 0 || l.Cwd == "" {
		return paths, nil
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	fsys := os.DirFS(l.Cwd)
	for _, pattern := range l.Globs {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("template glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			full := filepath.Join(l.Cwd, filepath.FromSlash(m))
			if !seen[full] {
				seen[full] = true
				paths = append(paths, full)
			}
		}
	}
	return paths, nil
}

// agentsDocPaths lists candidate AGENTS.md paths from the project root down
// to Cwd. Files may not exist.
func (l *Loader) agentsDocPaths() []string {
	if l.Cwd == "" {
		return nil
	}
	cwd, err := filepath.Abs(l.Cwd)
	if err != nil {
		cwd = l.Cwd
	}
	root := projectRoot(cwd)

	var dirs []string
	for dir := cwd; ; dir = filepath.Dir(dir) {
		dirs = append(dirs, dir)
		if dir == root || filepath.Dir(dir) == dir {
			break
		}
	}
	paths := make([]string, 0, len(dirs))
	for i := len(dirs) - 1; i >= 0; i-- {
		paths = append(paths, filepath.Join(dirs[i], ProjectDocName))
	}
	return paths
}

// projectRoot is the nearest ancestor of dir holding a .git entry, or dir
// itself when there is none.
func projectRoot(dir string) string {
	for cur := dir; ; cur = filepath.Dir(cur) {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur
		}
		if filepath.Dir(cur) == cur {
			return dir
		}
	}
}

// ExtractFencedBlocks returns the non-blank bodies of ```<tag> fenced blocks.
func ExtractFencedBlocks(contents, tag string) []string {
	var blocks []string
	var buf strings.Builder
	inBlock := false
	opener := "```" + tag

	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if !inBlock {
			if strings.HasPrefix(trimmed, opener) {
				inBlock = true
				buf.Reset()
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			inBlock = false
			if strings.TrimSpace(buf.String()) != "" {
				blocks = append(blocks, buf.String())
			}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return blocks
}
