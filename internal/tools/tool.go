// Package tools holds the functions a model can call during a session.
package tools

import (
	"context"

	"github.com/jeanpaul/fleet/internal/engine"
)

// Result is what the model sees. Error is set for failures the model should
// react to; a Go error from Execute means the tool itself broke.
type Result struct {
	Output string
	Error  string
}

// Text renders r as the content of a tool message.
func (r Result) Text() string {
	if r.Error == "" {
		return r.Output
	}
	if r.Output == "" {
		return "error: " + r.Error
	}
	return r.Output + "\nerror: " + r.Error
}

type Tool interface {
	Name() string
	Description() string
	Parameters() any
	Execute(ctx context.Context, args string) (Result, error)
}

// Announcer is implemented by tools whose invocation is reported as an
// engine event before they run. args has already passed validation.
type Announcer interface {
	Announce(callID, args string) engine.EventMsg
}
