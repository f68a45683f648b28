// Package local is an engine.Engine that drives an OpenAI-compatible
// chat-completions endpoint and runs tools in-process.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/tools"
	"github.com/jeanpaul/fleet/internal/types"
)

const defaultMaxTurns = 25

type Options struct {
	Completer Completer
	// SubAgents backs the sub-agent tools of sessions started with
	// Features.SubAgents. Sessions without the feature never see them.
	SubAgents          types.SubAgentController
	DisallowedCommands []string
	Logger             *slog.Logger
}

type Engine struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log}
}

func (e *Engine) Start(_ context.Context, cfg engine.Config) (engine.Session, error) {
	if e.opts.Completer == nil {
		return nil, errors.New("local engine: no model client configured")
	}
	reg := tools.NewRegistry()
	topts := tools.Options{Cwd: cfg.Cwd, DisallowedCommands: e.opts.DisallowedCommands}
	if cfg.Features.SubAgents {
		topts.SubAgents = e.opts.SubAgents
	}
	tools.RegisterDefaults(reg, topts)

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	sessionID := uuid.NewString()
	s := newSession(cfg, e.opts.Completer, reg, maxTurns, e.log.With("session", sessionID))
	s.emit("", engine.SessionConfigured{SessionID: sessionID, Model: cfg.Model})
	go s.loop()
	return s, nil
}

// toolParams converts registry definitions into chat-completions tools.
func toolParams(defs []tools.Def) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  schemaMap(d.Parameters),
			},
		})
	}
	return out
}

func schemaMap(v any) openai.FunctionParameters {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return openai.FunctionParameters{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return openai.FunctionParameters{"type": "object"}
	}
	return m
}
