// Package engine defines the contract between the sub-agent manager and the
// component that actually executes a task: model calls, tool invocations and
// the correlated event stream they produce.
package engine

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by Session methods after Close.
var ErrSessionClosed = errors.New("engine: session closed")

type ReasoningEffort string

const (
	EffortNone   ReasoningEffort = ""
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

type ReasoningSummary string

const (
	SummaryAuto     ReasoningSummary = "auto"
	SummaryConcise  ReasoningSummary = "concise"
	SummaryDetailed ReasoningSummary = "detailed"
	SummaryNone     ReasoningSummary = "none"
)

// Features toggles optional session capabilities.
type Features struct {
	// SubAgents exposes the sub-agent tools to the session.
	SubAgents bool
	// Skills lets the session receive SkillInput items.
	Skills bool
}

// Config is the configuration a session is started with. It is a plain value
// so a child configuration can be derived by copying the parent's.
type Config struct {
	Cwd              string
	Model            string
	UserInstructions string
	MaxTurns         int
	Features         Features
}

// ModelDefaults are used for a turn when the template does not override them.
type ModelDefaults struct {
	Model   string
	Effort  ReasoningEffort
	Summary ReasoningSummary
}

// Engine starts sessions.
type Engine interface {
	Start(ctx context.Context, cfg Config) (Session, error)
}

// Session is a running engine conversation. Events are delivered one at a
// time in order; the first one is always SessionConfigured.
type Session interface {
	// Submit queues an operation and returns its correlation id. Events
	// produced on behalf of a UserTurn carry that id.
	Submit(ctx context.Context, op Op) (string, error)
	NextEvent(ctx context.Context) (Event, error)
	Close() error
}

// Op is an operation submitted to a session.
type Op interface {
	isOp()
}

// UserTurn starts a new turn built from the given items.
type UserTurn struct {
	Items   []InputItem
	Cwd     string
	Model   string
	Effort  ReasoningEffort
	Summary ReasoningSummary
}

// Interrupt asks the session to abort the active turn.
type Interrupt struct{}

func (UserTurn) isOp()  {}
func (Interrupt) isOp() {}

// InputItem is one element of a user turn.
type InputItem interface {
	isInputItem()
}

type TextInput struct {
	Text string
}

// SkillInput references a skill file the session should load.
type SkillInput struct {
	Name string
	Path string
}

func (TextInput) isInputItem()  {}
func (SkillInput) isInputItem() {}
