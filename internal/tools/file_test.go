package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "one\ntwo\nthree\nfour")
	tool := &ReadFileTool{Cwd: dir}

	res, err := tool.Execute(context.Background(), `{"path":"notes.txt","offset":1,"limit":2}`)
	require.NoError(t, err)
	assert.Equal(t, "   2\ttwo\n   3\tthree\n", res.Output)

	res, err = tool.Execute(context.Background(), `{"path":"missing.txt"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)

	assert.Equal(t, engine.ReadFileToolCall{CallID: "c", Path: "notes.txt"}, tool.Announce("c", `{"path":"notes.txt"}`))
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "internal", "x", "x.go"), "package x")
	writeFile(t, filepath.Join(dir, "README.md"), "# hi")
	tool := &GlobTool{Cwd: dir}

	res, err := tool.Execute(context.Background(), `{"pattern":"**/*.go"}`)
	require.NoError(t, err)
	assert.Equal(t, "internal/x/x.go\nmain.go", res.Output)

	res, err = tool.Execute(context.Background(), `{"pattern":"*.go","path":"internal/x"}`)
	require.NoError(t, err)
	assert.Equal(t, "x.go", res.Output)

	res, err = tool.Execute(context.Background(), `{"pattern":"**/*.rs"}`)
	require.NoError(t, err)
	assert.Equal(t, "No files matched the pattern.", res.Output)
}

func TestEditFileTool_Replace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	writeFile(t, path, "package a\n\nconst X = 1\n")
	tool := &EditFileTool{Cwd: dir}

	res, err := tool.Execute(context.Background(), `{"path":"a.go","old_string":"X = 1","new_string":"X = 2"}`)
	require.NoError(t, err)
	require.Empty(t, res.Error)
	assert.Contains(t, res.Output, "--- a/a.go")
	assert.Contains(t, res.Output, "+++ b/a.go")
	assert.Contains(t, res.Output, "-const X = 1")
	assert.Contains(t, res.Output, "+const X = 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package a\n\nconst X = 2\n", string(data))

	res, err = tool.Execute(context.Background(), `{"path":"a.go","old_string":"nothing here","new_string":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "old_string not found in file", res.Error)

	writeFile(t, path, "x x")
	res, err = tool.Execute(context.Background(), `{"path":"a.go","old_string":"x","new_string":"y"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "multiple locations")
}

func TestEditFileTool_CreateAndNoop(t *testing.T) {
	dir := t.TempDir()
	tool := &EditFileTool{Cwd: dir}

	res, err := tool.Execute(context.Background(), `{"path":"sub/new.txt","content":"hello\n"}`)
	require.NoError(t, err)
	require.Empty(t, res.Error)
	assert.Contains(t, res.Output, "+hello")

	data, err := os.ReadFile(filepath.Join(dir, "sub", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	res, err = tool.Execute(context.Background(), `{"path":"sub/new.txt","content":"hello\n"}`)
	require.NoError(t, err)
	assert.Equal(t, "No changes.", res.Output)

	res, err = tool.Execute(context.Background(), `{"path":"missing.txt","old_string":"a","new_string":"b"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)

	assert.Equal(t, engine.PatchApplyBegin{CallID: "c", Files: []string{"x.go"}}, tool.Announce("c", `{"path":"x.go"}`))
}

func TestUpdatePlanTool(t *testing.T) {
	tool := &UpdatePlanTool{}
	r := NewRegistry()
	r.Register(tool)

	args := `{"explanation":"start","plan":[{"step":"read","status":"completed"},{"step":"write","status":"in_progress"}]}`
	res, err := r.Execute(context.Background(), "update_plan", args)
	require.NoError(t, err)
	assert.Equal(t, "Plan updated", res.Output)

	ev := tool.Announce("c", args)
	assert.Equal(t, engine.PlanUpdate{Args: types.PlanUpdate{
		Explanation: "start",
		Plan: []types.PlanItem{
			{Step: "read", Status: types.PlanStepCompleted},
			{Step: "write", Status: types.PlanStepInProgress},
		},
	}}, ev)

	res, err = r.Execute(context.Background(), "update_plan", `{"plan":[{"step":"a","status":"in_progress"},{"step":"b","status":"in_progress"}]}`)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "at most one")

	res, err = r.Execute(context.Background(), "update_plan", `{"plan":[{"step":"a","status":"done"}]}`)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "invalid arguments")
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "ok", Result{Output: "ok"}.Text())
	assert.Equal(t, "error: bad", Result{Error: "bad"}.Text())
	assert.Equal(t, "out\nerror: bad", Result{Output: "out", Error: "bad"}.Text())
}

func TestReadFileTool_Excel(t *testing.T) {
	dir := t.TempDir()
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"name", "status"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"inspect", "a|b"}))
	require.NoError(t, wb.SaveAs(filepath.Join(dir, "agents.xlsx")))
	require.NoError(t, wb.Close())

	res, err := (&ReadFileTool{Cwd: dir}).Execute(context.Background(), `{"path":"agents.xlsx"}`)
	require.NoError(t, err)
	require.Empty(t, res.Error)
	assert.Contains(t, res.Output, "--- Sheet: Sheet1 ---")
	assert.Contains(t, res.Output, "| name | status |")
	assert.Contains(t, res.Output, `| inspect | a\|b |`)
}

func TestReadFileTool_BrokenPDF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.pdf"), "not a pdf")

	res, err := (&ReadFileTool{Cwd: dir}).Execute(context.Background(), `{"path":"bad.pdf"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "open pdf")
}

func TestRowsToMarkdown(t *testing.T) {
	got := rowsToMarkdown([][]string{{"a", "b"}, {"1"}, {"2", "3", "4"}})
	assert.Equal(t, "| a | b |  |\n| --- | --- | --- |\n| 1 |  |  |\n| 2 | 3 | 4 |\n", got)
}
