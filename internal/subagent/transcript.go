package subagent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	transcriptMaxLines     = 30
	transcriptMaxLineBytes = 300
	ellipsis               = "…"
)

// transcript is the rolling tail of a sub-agent's output shown in the UI.
type transcript struct {
	lines     []string
	truncated bool
}

// append splits msg into lines, drops blank ones, clips long ones and pushes
// them, evicting from the front past transcriptMaxLines. truncated is sticky.
func (t *transcript) append(msg string) {
	for _, raw := range strings.Split(msg, "\n") {
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		if line == "" {
			continue
		}
		t.lines = append(t.lines, clipLine(line, transcriptMaxLineBytes))
		for len(t.lines) > transcriptMaxLines {
			t.lines[0] = ""
			t.lines = t.lines[1:]
			t.truncated = true
		}
	}
}

func (t *transcript) snapshot() []string {
	if len(t.lines) == 0 {
		return nil
	}
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// clipLine cuts s to at most maxBytes on a rune boundary and marks the cut
// with an ellipsis.
func clipLine(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
