package tools

import (
	"context"
	"encoding/json"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/types"
)

// UpdatePlanTool lets the model publish a step plan. The plan itself travels
// as an engine event; the tool only acknowledges it.
type UpdatePlanTool struct{}

func (p *UpdatePlanTool) Name() string { return "update_plan" }
func (p *UpdatePlanTool) Description() string {
	return "Record your plan as a list of steps, each pending, in_progress or completed. At most one step may be in_progress."
}

func (p *UpdatePlanTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{"type": "string"},
			"plan": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"step":   map[string]any{"type": "string"},
						"status": map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
					},
					"required": []string{"step", "status"},
				},
			},
		},
		"required": []string{"plan"},
	}
}

func (p *UpdatePlanTool) Announce(_ string, rawArgs string) engine.EventMsg {
	var args types.PlanUpdate
	_ = json.Unmarshal([]byte(rawArgs), &args)
	return engine.PlanUpdate{Args: args}
}

func (p *UpdatePlanTool) Execute(_ context.Context, rawArgs string) (Result, error) {
	var args types.PlanUpdate
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	inProgress := 0
	for _, item := range args.Plan {
		if item.Status == types.PlanStepInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return Result{Error: "at most one step can be in_progress"}, nil
	}
	return Result{Output: "Plan updated"}, nil
}
