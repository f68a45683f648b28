package templates

// Builtin is the fallback template set used when no source defines any.
func Builtin() []Template {
	return []Template{
		{
			Name:         "inspect",
			Instructions: "Explore and understand the codebase by reading files and summarizing findings. Prefer commands that only read (e.g., git diff, rg/grep, ls, cat/sed). Do not make edits.",
		},
		{
			Name:         "implement",
			Instructions: "Make focused code changes with minimal diff. Apply repository conventions, run the smallest relevant tests/formatters, and report what changed and why.",
		},
		{
			Name:         "tests",
			Instructions: "Run the smallest set of tests to validate the change. Prefer fast, scoped commands (e.g., a single package or a single test). Report commands run and failures clearly.",
		},
		{
			Name:         "refactor",
			Instructions: "Refactor with minimal diff and keep behavior unchanged. Prefer mechanical transformations and keep names/structure consistent with the file.",
		},
		{
			Name:         "docs",
			Instructions: "Update documentation to match the code changes. Keep docs concise and verify any commands/paths mentioned.",
		},
	}
}
