package subagent

import "strings"

// FormatExecLabel renders a shell command for display. Login-shell wrappers
// ([bash -lc <script>]) show only the script.
func FormatExecLabel(command []string) string {
	if len(command) >= 3 && command[0] == "bash" && command[1] == "-lc" {
		return command[2]
	}
	return strings.Join(command, " ")
}

// titleFromTask returns the first non-blank line of task, trimmed.
func titleFromTask(task string) (string, bool) {
	for _, line := range strings.Split(task, "\n") {
		if title := strings.TrimSpace(line); title != "" {
			return title, true
		}
	}
	return "", false
}
