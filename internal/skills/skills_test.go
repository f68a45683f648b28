package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveFrontmatterAndDirectoryNames(t *testing.T) {
	cwd := t.TempDir()
	base := filepath.Join(cwd, ".fleet", "skills")
	named := writeSkill(t, filepath.Join(base, "a"), "---\nname: go-tests\ndescription: run go tests\n---\nbody")
	plain := writeSkill(t, filepath.Join(base, "nested", "release"), "no frontmatter here")

	got := NewFSResolver().Resolve(cwd)
	require.Len(t, got, 2)

	s, ok := Lookup(got, "go-tests")
	require.True(t, ok)
	assert.Equal(t, named, s.Path)
	assert.Equal(t, "run go tests", s.Description)

	s, ok = Lookup(got, "release")
	require.True(t, ok)
	assert.Equal(t, plain, s.Path)
}

func TestResolveFirstRootWins(t *testing.T) {
	cwd := t.TempDir()
	extra := t.TempDir()
	local := writeSkill(t, filepath.Join(cwd, ".fleet", "skills", "lint"), "local")
	writeSkill(t, filepath.Join(extra, "lint"), "global")
	writeSkill(t, filepath.Join(extra, "fmt"), "global")

	got := NewFSResolver(extra, filepath.Join(extra, "missing")).Resolve(cwd)
	require.Len(t, got, 2)
	s, _ := Lookup(got, "lint")
	assert.Equal(t, local, s.Path)
}

func TestLookupExactName(t *testing.T) {
	list := []Skill{{Name: "lint"}}
	_, ok := Lookup(list, "Lint")
	assert.False(t, ok)
	_, ok = Lookup(list, "nonexistent")
	assert.False(t, ok)
}
