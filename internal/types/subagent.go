package types

import (
	"context"
	"fmt"
)

// SubAgentStatus is the lifecycle state of a sub-agent. Completed, Canceled
// and Failed are terminal.
type SubAgentStatus int

const (
	StatusRunning SubAgentStatus = iota
	StatusCompleted
	StatusCanceled
	StatusFailed
)

func (s SubAgentStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s SubAgentStatus) Terminal() bool {
	return s != StatusRunning
}

func (s SubAgentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SubAgentStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = StatusRunning
	case "completed":
		*s = StatusCompleted
	case "canceled":
		*s = StatusCanceled
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown sub-agent status %q", b)
	}
	return nil
}

type ActivityKind int

const (
	ActivityBash ActivityKind = iota
	ActivityRead
	ActivityMcp
	ActivityWebSearch
	ActivityApplyPatch
	ActivityOther
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityBash:
		return "Bash"
	case ActivityRead:
		return "Read"
	case ActivityMcp:
		return "MCP"
	case ActivityWebSearch:
		return "WebSearch"
	case ActivityApplyPatch:
		return "ApplyPatch"
	default:
		return "Activity"
	}
}

func (k ActivityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ActivityKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Bash":
		*k = ActivityBash
	case "Read":
		*k = ActivityRead
	case "MCP":
		*k = ActivityMcp
	case "WebSearch":
		*k = ActivityWebSearch
	case "ApplyPatch":
		*k = ActivityApplyPatch
	case "Activity":
		*k = ActivityOther
	default:
		return fmt.Errorf("unknown activity kind %q", b)
	}
	return nil
}

// Activity describes the most recent tool use of a sub-agent.
type Activity struct {
	Kind  ActivityKind `json:"kind"`
	Label string       `json:"label"`
}

type PlanStepStatus string

const (
	PlanStepPending    PlanStepStatus = "pending"
	PlanStepInProgress PlanStepStatus = "in_progress"
	PlanStepCompleted  PlanStepStatus = "completed"
)

type PlanItem struct {
	Step   string         `json:"step"`
	Status PlanStepStatus `json:"status"`
}

// PlanUpdate is a structured plan proposal emitted by a sub-agent.
type PlanUpdate struct {
	Explanation string     `json:"explanation,omitempty"`
	Plan        []PlanItem `json:"plan"`
}

// SubAgentSummary is the listing view of one sub-agent.
type SubAgentSummary struct {
	ID           string         `json:"id"`
	Template     string         `json:"template"`
	Status       SubAgentStatus `json:"status"`
	Title        string         `json:"title"`
	ToolUses     int            `json:"tool_uses"`
	TotalTokens  *int64         `json:"total_tokens,omitempty"`
	LastActivity *Activity      `json:"last_activity,omitempty"`
}

// SubAgentPoll is the summary plus everything drained or read by a poll.
type SubAgentPoll struct {
	SubAgentSummary
	DrainedMessages        []string     `json:"drained_messages,omitempty"`
	DrainedPlanSuggestions []PlanUpdate `json:"drained_plan_suggestions,omitempty"`
	Result                 *string      `json:"result,omitempty"`
	Warnings               []string     `json:"warnings,omitempty"`
}

// SubAgentUIItem is one row of an update snapshot.
type SubAgentUIItem struct {
	ID                  string
	Template            string
	Title               string
	Status              SubAgentStatus
	ToolUses            int
	TotalTokens         *int64
	LastActivity        *Activity
	Transcript          []string
	TranscriptTruncated bool
}

// SubAgentsUpdate is a complete snapshot of all sub-agents. Consumers replace
// their whole view with each one.
type SubAgentsUpdate struct {
	CreatedCount int
	RunningCount int
	Agents       []SubAgentUIItem
}

// SubAgentController is what agent-facing tools need from the sub-agent
// manager. It lets the tools package stay independent of the manager.
type SubAgentController interface {
	SpawnTemplate(ctx context.Context, template, task string) (string, error)
	List() []SubAgentSummary
	Poll(id string, includeMessages bool) (SubAgentPoll, bool)
	Cancel(id string) bool
	Wait(ctx context.Context, id string) (SubAgentPoll, error)
}
