package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubAgentStatus_TextRoundTrip(t *testing.T) {
	for _, s := range []SubAgentStatus{StatusRunning, StatusCompleted, StatusCanceled, StatusFailed} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var got SubAgentStatus
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}
}

func TestSubAgentStatus_UnknownText(t *testing.T) {
	got := StatusRunning
	err := got.UnmarshalText([]byte("exploded"))
	assert.EqualError(t, err, `unknown sub-agent status "exploded"`)
	assert.Equal(t, StatusRunning, got)
}

func TestActivityKind_Text(t *testing.T) {
	var k ActivityKind
	require.NoError(t, k.UnmarshalText([]byte("Activity")))
	assert.Equal(t, ActivityOther, k)
	require.NoError(t, k.UnmarshalText([]byte("MCP")))
	assert.Equal(t, ActivityMcp, k)

	err := k.UnmarshalText([]byte("Telepathy"))
	assert.EqualError(t, err, `unknown activity kind "Telepathy"`)
	assert.Equal(t, ActivityMcp, k)
}
