// Package skills finds named skill files a sub-agent can be told to load.
package skills

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the file that marks a skill directory.
const FileName = "SKILL.md"

type Skill struct {
	Name        string
	Description string
	Path        string
}

// Resolver lists the skills visible from a working directory.
type Resolver interface {
	Resolve(cwd string) []Skill
}

// FSResolver discovers SKILL.md files under <cwd>/.fleet/skills and then
// under each of Dirs. The first skill seen with a given name wins.
type FSResolver struct {
	Dirs []string
}

func NewFSResolver(dirs ...string) *FSResolver {
	return &FSResolver{Dirs: dirs}
}

func (r *FSResolver) Resolve(cwd string) []Skill {
	roots := make([]string, 0, len(r.Dirs)+1)
	if cwd != "" {
		roots = append(roots, filepath.Join(cwd, ".fleet", "skills"))
	}
	roots = append(roots, r.Dirs...)

	seen := make(map[string]bool)
	var out []Skill
	for _, root := range roots {
		for _, s := range scanRoot(root) {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds a skill by exact name.
func Lookup(list []Skill, name string) (Skill, bool) {
	for _, s := range list {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

func scanRoot(root string) []Skill {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), "**/"+FileName)
	if err != nil {
		slog.Warn("skill scan failed", "root", root, "err", err)
		return nil
	}

	out := make([]Skill, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(root, filepath.FromSlash(m))
		s := Skill{Path: path, Name: filepath.Base(filepath.Dir(path))}
		if data, err := os.ReadFile(path); err == nil {
			if fm, ok := parseFrontmatter(string(data)); ok {
				if fm.Name != "" {
					s.Name = fm.Name
				}
				s.Description = fm.Description
			}
		}
		out = append(out, s)
	}
	return out
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func parseFrontmatter(content string) (frontmatter, bool) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(content, "---") {
		return frontmatter{}, false
	}
	rest := strings.TrimLeft(content[3:], "\r\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return frontmatter{}, false
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return frontmatter{}, false
	}
	return fm, true
}
