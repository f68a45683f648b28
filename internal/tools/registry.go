package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/jeanpaul/fleet/internal/schema"
	"github.com/jeanpaul/fleet/internal/types"
)

// Def is the model-facing description of a tool.
type Def struct {
	Name        string
	Description string
	Parameters  any
}

type Registry struct {
	tools     map[string]Tool
	validator *schema.Validator
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), validator: schema.NewValidator()}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Defs lists registered tools sorted by name.
func (r *Registry) Defs() []Def {
	defs := make([]Def, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Def{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Validate checks args against the named tool's schema.
func (r *Registry) Validate(name, args string) error {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	return r.validator.Validate(t.Parameters(), args)
}

// Execute validates args and runs the tool. Unknown tools and invalid
// arguments are reported in the Result, not as errors.
func (r *Registry) Execute(ctx context.Context, name, args string) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{Error: fmt.Sprintf("unknown tool: %s", name)}, nil
	}
	if err := r.validator.Validate(t.Parameters(), args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	return t.Execute(ctx, args)
}

// Options selects the tools a session gets.
type Options struct {
	Cwd string
	// DisallowedCommands are refused by the shell tool.
	DisallowedCommands []string
	// SubAgents, when set, adds the sub-agent tools.
	SubAgents types.SubAgentController
}

// RegisterDefaults registers the workspace tools and, when a controller is
// given, the sub-agent tools.
func RegisterDefaults(r *Registry, opts Options) {
	r.Register(&ShellTool{Cwd: opts.Cwd, DisallowedCommands: opts.DisallowedCommands})
	r.Register(&ReadFileTool{Cwd: opts.Cwd})
	r.Register(&GlobTool{Cwd: opts.Cwd})
	r.Register(&EditFileTool{Cwd: opts.Cwd})
	r.Register(&UpdatePlanTool{})
	r.Register(&WebSearchTool{})
	r.Register(&WebFetchTool{})
	if opts.SubAgents != nil {
		RegisterSubAgentTools(r, opts.SubAgents)
	}
}
