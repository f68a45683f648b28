package local

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/tools"
)

type submission struct {
	id   string
	turn engine.UserTurn
	ctx  context.Context
}

type session struct {
	cfg       engine.Config
	completer Completer
	tools     *tools.Registry
	toolDefs  []openai.ChatCompletionToolParam
	maxTurns  int
	log       *slog.Logger

	events    chan engine.Event
	ops       chan submission
	done      chan struct{}
	closeOnce sync.Once
	nextID    atomic.Uint64

	mu sync.Mutex
	// cancels of queued and active turns, by submission id
	pending map[string]context.CancelFunc

	// Owned by the loop goroutine.
	history   []openai.ChatCompletionMessageParamUnion
	usage     engine.TokenUsage
	haveUsage bool
}

func newSession(cfg engine.Config, c Completer, reg *tools.Registry, maxTurns int, log *slog.Logger) *session {
	defs := reg.Defs()
	return &session{
		cfg:       cfg,
		completer: c,
		tools:     reg,
		toolDefs:  toolParams(defs),
		maxTurns:  maxTurns,
		log:       log,
		events:    make(chan engine.Event, 64),
		ops:       make(chan submission, 8),
		done:      make(chan struct{}),
		pending:   make(map[string]context.CancelFunc),
		history:   []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt(cfg, defs))},
	}
}

func (s *session) Submit(ctx context.Context, op engine.Op) (string, error) {
	if s.closed() {
		return "", engine.ErrSessionClosed
	}
	id := strconv.FormatUint(s.nextID.Add(1), 10)
	switch op := op.(type) {
	case engine.Interrupt:
		s.mu.Lock()
		for _, cancel := range s.pending {
			cancel()
		}
		s.mu.Unlock()
		return id, nil
	case engine.UserTurn:
		turnCtx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.pending[id] = cancel
		s.mu.Unlock()
		select {
		case s.ops <- submission{id: id, turn: op, ctx: turnCtx}:
			return id, nil
		case <-s.done:
			s.forget(id)
			return "", engine.ErrSessionClosed
		case <-ctx.Done():
			s.forget(id)
			return "", ctx.Err()
		}
	default:
		return "", fmt.Errorf("local engine: unsupported op %T", op)
	}
}

func (s *session) NextEvent(ctx context.Context) (engine.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		return engine.Event{}, engine.ErrSessionClosed
	case <-ctx.Done():
		return engine.Event{}, ctx.Err()
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		for _, cancel := range s.pending {
			cancel()
		}
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) forget(id string) {
	s.mu.Lock()
	if cancel, ok := s.pending[id]; ok {
		cancel()
		delete(s.pending, id)
	}
	s.mu.Unlock()
}

func (s *session) emit(id string, msg engine.EventMsg) {
	select {
	case s.events <- engine.Event{ID: id, Msg: msg}:
	case <-s.done:
	}
}

func (s *session) loop() {
	for {
		select {
		case sub := <-s.ops:
			s.runTurn(sub)
		case <-s.done:
			return
		}
	}
}

func (s *session) runTurn(sub submission) {
	defer s.forget(sub.id)
	ctx, turn := sub.ctx, sub.turn

	text, problems := userText(turn.Items, s.cfg.Features.Skills)
	for _, p := range problems {
		s.log.Warn("turn input skipped", "submission", sub.id, "reason", p)
	}
	s.history = append(s.history, openai.UserMessage(text))

	model := turn.Model
	if model == "" {
		model = s.cfg.Model
	}
	if model == "" {
		s.emit(sub.id, engine.Error{Message: "no model configured"})
		return
	}

	var last *string
	for i := 0; i < s.maxTurns; i++ {
		if ctx.Err() != nil {
			s.emit(sub.id, engine.TurnAborted{Reason: "interrupted"})
			return
		}
		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(model),
			Messages: s.history,
			Tools:    s.toolDefs,
		}
		if turn.Effort != engine.EffortNone {
			params.ReasoningEffort = shared.ReasoningEffort(turn.Effort)
		}
		resp, err := s.completer.Complete(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				s.emit(sub.id, engine.TurnAborted{Reason: "interrupted"})
				return
			}
			s.emit(sub.id, engine.Error{Message: friendlyError(err)})
			return
		}
		s.emit(sub.id, s.recordUsage(resp.Usage))
		if len(resp.Choices) == 0 {
			s.emit(sub.id, engine.Error{Message: "model returned no choices"})
			return
		}

		msg := resp.Choices[0].Message
		s.history = append(s.history, msg.ToParam())
		if strings.TrimSpace(msg.Content) != "" {
			content := msg.Content
			last = &content
			s.emit(sub.id, engine.AgentMessage{Message: content})
		}
		if len(msg.ToolCalls) == 0 {
			s.emit(sub.id, engine.TaskComplete{LastAgentMessage: last})
			return
		}
		// Every call gets a reply, even after an interrupt, so the history
		// stays valid for the next turn.
		for _, call := range msg.ToolCalls {
			out := s.callTool(ctx, sub.id, call.ID, call.Function.Name, call.Function.Arguments)
			s.history = append(s.history, openai.ToolMessage(out, call.ID))
		}
	}
	s.emit(sub.id, engine.Error{Message: fmt.Sprintf("turn stopped after %d model calls", s.maxTurns)})
}

func (s *session) callTool(ctx context.Context, subID, callID, name, args string) string {
	if t, ok := s.tools.Get(name); ok {
		if a, ok := t.(tools.Announcer); ok && s.tools.Validate(name, args) == nil {
			if ev := a.Announce(callID, args); ev != nil {
				s.emit(subID, ev)
			}
		}
	}
	s.log.Debug("tool call", "tool", name, "call", callID)
	res, err := s.tools.Execute(ctx, name, args)
	if err != nil {
		return "error: " + err.Error()
	}
	return res.Text()
}

// recordUsage folds one response's usage into the session total.
func (s *session) recordUsage(u openai.CompletionUsage) engine.TokenCount {
	last := engine.TokenUsage{
		InputTokens:           u.PromptTokens,
		CachedInputTokens:     u.PromptTokensDetails.CachedTokens,
		OutputTokens:          u.CompletionTokens,
		ReasoningOutputTokens: u.CompletionTokensDetails.ReasoningTokens,
		TotalTokens:           u.TotalTokens,
	}
	if last == (engine.TokenUsage{}) && !s.haveUsage {
		return engine.TokenCount{}
	}
	s.haveUsage = true
	s.usage = s.usage.Add(last)
	return engine.TokenCount{Info: &engine.TokenUsageInfo{Total: s.usage, Last: last}}
}
