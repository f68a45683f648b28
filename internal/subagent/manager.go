// Package subagent runs sub-agents spawned by a parent agent and keeps the
// authoritative record of their state.
//
// A Manager owns every entry. Each spawned sub-agent gets its own goroutine
// (the runner) that drives an engine session and mutates its entry only
// through Manager methods. Every externally visible change is published as a
// full snapshot to an optional observer channel, skipping snapshots that are
// identical to the last one sent.
package subagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/skills"
	"github.com/jeanpaul/fleet/internal/templates"
	"github.com/jeanpaul/fleet/internal/types"
)

var (
	ErrUnknownTemplate = errors.New("unknown sub-agent template")
	ErrTooManyRunning  = errors.New("too many running sub-agents")
	ErrNotFound        = errors.New("sub-agent not found")
)

// Recorder archives an entry once it reaches a terminal status.
type Recorder interface {
	Record(types.SubAgentPoll) error
}

type Options struct {
	Engine    engine.Engine
	Templates templates.Provider
	Skills    skills.Resolver
	// Recorder is optional.
	Recorder Recorder
	// MaxConcurrent caps Running entries at spawn time. Zero means no cap.
	MaxConcurrent int
	Logger        *slog.Logger
}

type entry struct {
	template     string
	title        string
	status       types.SubAgentStatus
	toolUses     int
	totalTokens  *int64
	lastActivity *types.Activity
	transcript   transcript

	drainedMessages []string
	drainedPlans    []types.PlanUpdate
	result          *string
	warnings        []string

	cancel  context.CancelFunc
	session engine.Session
	// done is closed on the first terminal transition.
	done chan struct{}
}

// Manager is the registry of sub-agents. It is safe for concurrent use.
type Manager struct {
	engine        engine.Engine
	templates     templates.Provider
	skills        skills.Resolver
	recorder      Recorder
	maxConcurrent int
	log           *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	order   []string

	pub publisher
}

func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		engine:        opts.Engine,
		templates:     opts.Templates,
		skills:        opts.Skills,
		recorder:      opts.Recorder,
		maxConcurrent: opts.MaxConcurrent,
		log:           log,
		entries:       make(map[string]*entry),
	}
}

// SetEventSender registers the observer channel. Sends never block: a full
// channel drops the snapshot.
func (m *Manager) SetEventSender(tx chan<- types.SubAgentsUpdate) {
	m.pub.setSender(tx)
}

// Spawn resolves templateName, registers a Running entry and starts its
// runner. It returns as soon as the entry exists.
func (m *Manager) Spawn(ctx context.Context, templateName, task string, defaults engine.ModelDefaults, parent engine.Config) (string, error) {
	list, err := m.templates.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load sub-agent templates: %w", err)
	}
	tmpl, ok := templates.Find(list, templateName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateName)
	}
	doc, err := m.templates.ProjectDoc(ctx)
	if err != nil {
		return "", fmt.Errorf("read project docs: %w", err)
	}

	title, ok := titleFromTask(task)
	if !ok {
		title = tmpl.Name
	}

	cfg := parent
	cfg.UserInstructions = doc
	cfg.Features.SubAgents = false
	if len(tmpl.Skills) > 0 {
		cfg.Features.Skills = true
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	e := &entry{
		template: tmpl.Name,
		title:    title,
		status:   types.StatusRunning,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.maxConcurrent > 0 && m.runningLocked() >= m.maxConcurrent {
		m.mu.Unlock()
		cancel()
		return "", fmt.Errorf("%w (limit %d)", ErrTooManyRunning, m.maxConcurrent)
	}
	m.entries[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.log.Info("sub-agent spawned", "id", id, "template", tmpl.Name, "title", title)
	m.publish()

	r := &runner{m: m, id: id, tmpl: tmpl, task: task, defaults: defaults, cfg: cfg, ctx: runCtx}
	go r.run()
	return id, nil
}

// List returns summaries in spawn order.
func (m *Manager) List() []types.SubAgentSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SubAgentSummary, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, summaryLocked(id, m.entries[id]))
	}
	return out
}

// Poll returns the current state of id. Messages are drained only when
// includeMessages is set; plan suggestions are drained on every call.
func (m *Manager) Poll(id string, includeMessages bool) (types.SubAgentPoll, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return types.SubAgentPoll{}, false
	}
	p := snapshotLocked(id, e)
	if includeMessages {
		e.drainedMessages = nil
	} else {
		p.DrainedMessages = nil
	}
	e.drainedPlans = nil
	return p, true
}

// Cancel marks id Canceled, signals its runner and forwards an interrupt to
// its session when one is attached. It reports whether id exists.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	terminated := m.setStatusLocked(e, types.StatusCanceled)
	e.cancel()
	sess := e.session
	var snap types.SubAgentPoll
	if terminated {
		snap = snapshotLocked(id, e)
	}
	m.mu.Unlock()

	if sess != nil {
		go func() {
			_, _ = sess.Submit(context.Background(), engine.Interrupt{})
		}()
	}
	if terminated {
		m.log.Info("sub-agent canceled", "id", id)
		m.record(snap)
	}
	m.publish()
	return true
}

// Wait blocks until id reaches a terminal status or ctx ends. It does not
// drain anything.
func (m *Manager) Wait(ctx context.Context, id string) (types.SubAgentPoll, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return types.SubAgentPoll{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return types.SubAgentPoll{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotLocked(id, e), nil
}

// Running counts entries in StatusRunning.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Manager) runningLocked() int {
	n := 0
	for _, e := range m.entries {
		if e.status == types.StatusRunning {
			n++
		}
	}
	return n
}

// setStatusLocked applies a transition unless e is already terminal. It
// reports whether this call moved e into a terminal status.
func (m *Manager) setStatusLocked(e *entry, s types.SubAgentStatus) bool {
	if e.status.Terminal() || s == e.status {
		return false
	}
	e.status = s
	if s.Terminal() {
		close(e.done)
		return true
	}
	return false
}

// update runs fn on the entry for id under the lock. It reports whether the
// entry exists.
func (m *Manager) update(id string, fn func(e *entry)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

func (m *Manager) attachSession(id string, sess engine.Session) {
	m.update(id, func(e *entry) { e.session = sess })
}

func (m *Manager) appendMessage(id, msg string) {
	m.update(id, func(e *entry) {
		e.transcript.append(msg)
		e.drainedMessages = append(e.drainedMessages, msg)
	})
	m.publish()
}

func (m *Manager) appendPlanSuggestion(id string, args types.PlanUpdate) {
	m.update(id, func(e *entry) {
		e.drainedPlans = append(e.drainedPlans, args)
	})
}

func (m *Manager) bumpToolUse(id string, activity types.Activity) {
	m.update(id, func(e *entry) {
		if e.toolUses < math.MaxInt {
			e.toolUses++
		}
		a := activity
		e.lastActivity = &a
	})
	m.publish()
}

func (m *Manager) setTotalTokens(id string, total *int64) {
	m.update(id, func(e *entry) { e.totalTokens = total })
	m.publish()
}

func (m *Manager) appendWarnings(id string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	m.update(id, func(e *entry) {
		e.warnings = append(e.warnings, warnings...)
	})
}

// finish moves id to a terminal status, optionally setting the result and
// appending warnings, then archives and publishes. Warnings are appended
// even when the entry was already terminal; the archive is then rewritten
// so it carries them too.
func (m *Manager) finish(id string, status types.SubAgentStatus, result *string, warnings ...string) {
	var snap types.SubAgentPoll
	archive := false
	m.update(id, func(e *entry) {
		e.warnings = append(e.warnings, warnings...)
		if m.setStatusLocked(e, status) {
			archive = true
			if status == types.StatusCompleted {
				e.result = result
			}
		} else if len(warnings) > 0 && e.status.Terminal() {
			archive = true
		}
		if archive {
			snap = snapshotLocked(id, e)
		}
	})
	if archive {
		m.record(snap)
	}
	m.publish()
}

func (m *Manager) complete(id string, result *string) {
	m.finish(id, types.StatusCompleted, result)
}

func (m *Manager) fail(id string, warnings ...string) {
	m.finish(id, types.StatusFailed, nil, warnings...)
}

func (m *Manager) markCanceled(id string) {
	m.finish(id, types.StatusCanceled, nil)
}

func (m *Manager) record(snap types.SubAgentPoll) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(snap); err != nil {
		m.log.Warn("archive sub-agent failed", "id", snap.ID, "err", err)
	}
}

func summaryLocked(id string, e *entry) types.SubAgentSummary {
	s := types.SubAgentSummary{
		ID:       id,
		Template: e.template,
		Status:   e.status,
		Title:    e.title,
		ToolUses: e.toolUses,
	}
	if e.totalTokens != nil {
		v := *e.totalTokens
		s.TotalTokens = &v
	}
	if e.lastActivity != nil {
		a := *e.lastActivity
		s.LastActivity = &a
	}
	return s
}

// snapshotLocked copies everything a poll can see without draining.
func snapshotLocked(id string, e *entry) types.SubAgentPoll {
	p := types.SubAgentPoll{SubAgentSummary: summaryLocked(id, e)}
	if len(e.drainedMessages) > 0 {
		p.DrainedMessages = append([]string(nil), e.drainedMessages...)
	}
	if len(e.drainedPlans) > 0 {
		p.DrainedPlanSuggestions = append([]types.PlanUpdate(nil), e.drainedPlans...)
	}
	if e.result != nil {
		r := *e.result
		p.Result = &r
	}
	if len(e.warnings) > 0 {
		p.Warnings = append([]string(nil), e.warnings...)
	}
	return p
}

// Bind returns a controller that spawns with fixed defaults and parent
// configuration. Agent-facing tools use it.
func (m *Manager) Bind(defaults engine.ModelDefaults, parent engine.Config) types.SubAgentController {
	return &boundController{Manager: m, defaults: defaults, parent: parent}
}

type boundController struct {
	*Manager
	defaults engine.ModelDefaults
	parent   engine.Config
}

func (b *boundController) SpawnTemplate(ctx context.Context, template, task string) (string, error) {
	return b.Spawn(ctx, template, task, b.defaults, b.parent)
}
