// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup returns a text logger at level writing to file, or to fallback when
// file is empty, and installs it as the slog default. The returned closer
// releases the file.
func Setup(level, file string, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", level, err)
	}

	out, closer := fallback, io.Closer(nopCloser{})
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
