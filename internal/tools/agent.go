package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jeanpaul/fleet/internal/types"
)

// RegisterSubAgentTools adds the tools a parent agent uses to manage
// sub-agents.
func RegisterSubAgentTools(r *Registry, ctl types.SubAgentController) {
	r.Register(NewSpawnAgentTool(ctl))
	r.Register(NewListAgentsTool(ctl))
	r.Register(NewPollAgentTool(ctl))
	r.Register(NewCancelAgentTool(ctl))
}

func jsonResult(v any) (Result, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return Result{Output: string(data)}, nil
}

// SpawnAgentTool starts a sub-agent from a named template.
type SpawnAgentTool struct {
	ctl types.SubAgentController
}

func NewSpawnAgentTool(ctl types.SubAgentController) *SpawnAgentTool {
	return &SpawnAgentTool{ctl: ctl}
}

type spawnAgentArgs struct {
	Template string `json:"template"`
	Task     string `json:"task"`
	Wait     bool   `json:"wait,omitempty"`
}

func (s *SpawnAgentTool) Name() string { return "spawn_agent" }
func (s *SpawnAgentTool) Description() string {
	return "Spawn a sub-agent from a template to work on a task in parallel. Returns its id immediately unless 'wait' is true, in which case it returns the final result."
}

func (s *SpawnAgentTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of the sub-agent template (e.g. 'inspect', 'tests')",
			},
			"task": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The task for the sub-agent. The first line becomes its title.",
			},
			"wait": map[string]any{
				"type":        "boolean",
				"description": "Block until the sub-agent finishes and return its result.",
			},
		},
		"required": []string{"template", "task"},
	}
}

func (s *SpawnAgentTool) Execute(ctx context.Context, rawArgs string) (Result, error) {
	var args spawnAgentArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}

	id, err := s.ctl.SpawnTemplate(ctx, args.Template, args.Task)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	if !args.Wait {
		return jsonResult(map[string]string{"id": id})
	}

	p, err := s.ctl.Wait(ctx, id)
	if err != nil {
		s.ctl.Cancel(id)
		return Result{Error: fmt.Sprintf("sub-agent %s: %v", id, err)}, nil
	}
	return jsonResult(p)
}

// ListAgentsTool lists all sub-agents in spawn order.
type ListAgentsTool struct {
	ctl types.SubAgentController
}

func NewListAgentsTool(ctl types.SubAgentController) *ListAgentsTool {
	return &ListAgentsTool{ctl: ctl}
}

func (l *ListAgentsTool) Name() string { return "list_agents" }
func (l *ListAgentsTool) Description() string {
	return "List all sub-agents with their status, tool use count and token usage."
}

func (l *ListAgentsTool) Parameters() any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (l *ListAgentsTool) Execute(_ context.Context, _ string) (Result, error) {
	agents := l.ctl.List()
	if len(agents) == 0 {
		return Result{Output: "No sub-agents have been spawned."}, nil
	}
	return jsonResult(agents)
}

// PollAgentTool reports one sub-agent's state and drains its queues.
type PollAgentTool struct {
	ctl types.SubAgentController
}

func NewPollAgentTool(ctl types.SubAgentController) *PollAgentTool {
	return &PollAgentTool{ctl: ctl}
}

type pollAgentArgs struct {
	ID              string `json:"id"`
	IncludeMessages bool   `json:"include_messages,omitempty"`
}

func (p *PollAgentTool) Name() string { return "poll_agent" }
func (p *PollAgentTool) Description() string {
	return "Get a sub-agent's status, result and warnings. Pending plan suggestions are always returned and cleared; messages are returned and cleared only with include_messages."
}

func (p *PollAgentTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":               map[string]any{"type": "string", "minLength": 1},
			"include_messages": map[string]any{"type": "boolean"},
		},
		"required": []string{"id"},
	}
}

func (p *PollAgentTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args pollAgentArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	poll, ok := p.ctl.Poll(args.ID, args.IncludeMessages)
	if !ok {
		return Result{Error: fmt.Sprintf("no sub-agent with id %s", args.ID)}, nil
	}
	return jsonResult(poll)
}

// CancelAgentTool stops a running sub-agent.
type CancelAgentTool struct {
	ctl types.SubAgentController
}

func NewCancelAgentTool(ctl types.SubAgentController) *CancelAgentTool {
	return &CancelAgentTool{ctl: ctl}
}

type cancelAgentArgs struct {
	ID string `json:"id"`
}

func (c *CancelAgentTool) Name() string { return "cancel_agent" }
func (c *CancelAgentTool) Description() string {
	return "Cancel a sub-agent. Canceling a finished sub-agent has no effect."
}

func (c *CancelAgentTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"id"},
	}
}

func (c *CancelAgentTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args cancelAgentArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	if !c.ctl.Cancel(args.ID) {
		return Result{Error: fmt.Sprintf("no sub-agent with id %s", args.ID)}, nil
	}
	return Result{Output: fmt.Sprintf("sub-agent %s canceled", args.ID)}, nil
}
