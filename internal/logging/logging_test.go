package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Fallback(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log, closer, err := Setup("warn", "", &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "id", "a1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown id=a1")
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "fleet.log")
	_, closer, err := Setup("DEBUG", path, nil)
	require.NoError(t, err)

	slog.Debug("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"to file\"")
}

func TestSetup_BadLevel(t *testing.T) {
	_, _, err := Setup("loud", "", &bytes.Buffer{})
	assert.Error(t, err)
}
