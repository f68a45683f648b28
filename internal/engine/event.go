package engine

import "github.com/jeanpaul/fleet/internal/types"

// Event is one element of a session's event stream. ID is the correlation id
// of the submission the event belongs to.
type Event struct {
	ID  string
	Msg EventMsg
}

// EventMsg is the closed set of event payloads below. Consumers should switch
// over it exhaustively and name an explicit default arm.
type EventMsg interface {
	eventMsg()
}

// SessionConfigured acknowledges Start. It is always the first event.
type SessionConfigured struct {
	SessionID string
	Model     string
}

// AgentMessage is a complete message produced by the model.
type AgentMessage struct {
	Message string
}

// AgentReasoning carries reasoning text. The sub-agent manager ignores it.
type AgentReasoning struct {
	Text string
}

// PlanUpdate is a plan proposal from the model.
type PlanUpdate struct {
	Args types.PlanUpdate
}

type ExecCommandBegin struct {
	CallID  string
	Command []string
	Cwd     string
}

type ReadFileToolCall struct {
	CallID string
	Path   string
}

type McpToolCallBegin struct {
	CallID string
	Server string
	Tool   string
}

type WebSearchBegin struct {
	CallID string
	Query  string
}

type PatchApplyBegin struct {
	CallID string
	Files  []string
}

// TokenCount reports cumulative usage. Info is nil when the backend gave
// no usage data.
type TokenCount struct {
	Info *TokenUsageInfo
}

type TokenUsageInfo struct {
	Total TokenUsage
	Last  TokenUsage
}

type TokenUsage struct {
	InputTokens           int64
	CachedInputTokens     int64
	OutputTokens          int64
	ReasoningOutputTokens int64
	TotalTokens           int64
}

// NonCachedInput is the part of the input that was billed at full price.
func (u TokenUsage) NonCachedInput() int64 {
	if u.CachedInputTokens > u.InputTokens {
		return 0
	}
	return u.InputTokens - u.CachedInputTokens
}

// BlendedTotal is the headline token figure: non-cached input plus output.
func (u TokenUsage) BlendedTotal() int64 {
	return u.NonCachedInput() + u.OutputTokens
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:           u.InputTokens + o.InputTokens,
		CachedInputTokens:     u.CachedInputTokens + o.CachedInputTokens,
		OutputTokens:          u.OutputTokens + o.OutputTokens,
		ReasoningOutputTokens: u.ReasoningOutputTokens + o.ReasoningOutputTokens,
		TotalTokens:           u.TotalTokens + o.TotalTokens,
	}
}

// TaskComplete ends a turn successfully.
type TaskComplete struct {
	LastAgentMessage *string
}

// Error ends a turn with a failure.
type Error struct {
	Message string
}

// TurnAborted is emitted when an Interrupt stopped the active turn.
type TurnAborted struct {
	Reason string
}

func (SessionConfigured) eventMsg() {}
func (AgentMessage) eventMsg()      {}
func (AgentReasoning) eventMsg()    {}
func (PlanUpdate) eventMsg()        {}
func (ExecCommandBegin) eventMsg()  {}
func (ReadFileToolCall) eventMsg()  {}
func (McpToolCallBegin) eventMsg()  {}
func (WebSearchBegin) eventMsg()    {}
func (PatchApplyBegin) eventMsg()   {}
func (TokenCount) eventMsg()        {}
func (TaskComplete) eventMsg()      {}
func (Error) eventMsg()             {}
func (TurnAborted) eventMsg()       {}
