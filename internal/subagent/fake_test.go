package subagent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/skills"
	"github.com/jeanpaul/fleet/internal/templates"
	"github.com/jeanpaul/fleet/internal/types"
)

const testSubmissionID = "sub-1"

// fakeSession hands out events that the test pushes one at a time. The
// events channel is unbuffered, so a send returns only once the runner has
// asked for that event.
type fakeSession struct {
	cfg       engine.Config
	events    chan engine.Event
	submitErr error
	// ackErr, when set, is returned by the first NextEvent instead of an event.
	ackErr    error
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	turns      []engine.UserTurn
	interrupts int
}

func newFakeSession(cfg engine.Config) *fakeSession {
	return &fakeSession{
		cfg:    cfg,
		events: make(chan engine.Event),
		closed: make(chan struct{}),
	}
}

func (s *fakeSession) Submit(_ context.Context, op engine.Op) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch op := op.(type) {
	case engine.UserTurn:
		if s.submitErr != nil {
			return "", s.submitErr
		}
		s.turns = append(s.turns, op)
		return testSubmissionID, nil
	case engine.Interrupt:
		s.interrupts++
	}
	return "", nil
}

func (s *fakeSession) NextEvent(ctx context.Context) (engine.Event, error) {
	s.mu.Lock()
	ackErr := s.ackErr
	s.ackErr = nil
	s.mu.Unlock()
	if ackErr != nil {
		return engine.Event{}, ackErr
	}
	select {
	case ev, ok := <-s.events:
		if !ok {
			return engine.Event{}, errors.New("stream closed")
		}
		return ev, nil
	case <-ctx.Done():
		return engine.Event{}, ctx.Err()
	}
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) send(t *testing.T, msg engine.EventMsg) {
	s.sendID(t, testSubmissionID, msg)
}

func (s *fakeSession) sendID(t *testing.T, id string, msg engine.EventMsg) {
	t.Helper()
	select {
	case s.events <- engine.Event{ID: id, Msg: msg}:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not read event %T", msg)
	}
}

// flush returns once every previously sent event has been handled.
func (s *fakeSession) flush(t *testing.T) {
	s.send(t, engine.AgentReasoning{Text: "…"})
}

// configure delivers the session ack and waits until the first turn has
// been submitted.
func (s *fakeSession) configure(t *testing.T) {
	s.send(t, engine.SessionConfigured{SessionID: "sess", Model: "m"})
	s.flush(t)
}

func (s *fakeSession) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed")
	}
}

func (s *fakeSession) firstTurn(t *testing.T) engine.UserTurn {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.turns)
	return s.turns[0]
}

func (s *fakeSession) interruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

type fakeEngine struct {
	startErr  error
	submitErr error
	ackErr    error
	panicMsg  string
	started   chan *fakeSession
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{started: make(chan *fakeSession, 16)}
}

func (e *fakeEngine) Start(_ context.Context, cfg engine.Config) (engine.Session, error) {
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if e.startErr != nil {
		return nil, e.startErr
	}
	s := newFakeSession(cfg)
	s.submitErr = e.submitErr
	s.ackErr = e.ackErr
	e.started <- s
	return s, nil
}

func (e *fakeEngine) session(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case s := <-e.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("engine session was not started")
		return nil
	}
}

type staticTemplates struct {
	list []templates.Template
	doc  string
	err  error
}

func (p staticTemplates) Load(context.Context) ([]templates.Template, error) {
	return p.list, p.err
}

func (p staticTemplates) ProjectDoc(context.Context) (string, error) {
	return p.doc, nil
}

type staticSkills []skills.Skill

func (s staticSkills) Resolve(string) []skills.Skill { return s }

type memRecorder struct {
	mu   sync.Mutex
	recs []types.SubAgentPoll
}

func (r *memRecorder) Record(p types.SubAgentPoll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, p)
	return nil
}

func (r *memRecorder) records() []types.SubAgentPoll {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SubAgentPoll(nil), r.recs...)
}

var testTemplates = staticTemplates{
	list: []templates.Template{
		{Name: "inspect", Instructions: "Look around."},
		{Name: "tests", Instructions: "Write tests.", Model: "small-model"},
		{Name: "skilled", Skills: []string{"lint", "nonexistent"}},
	},
	doc: "project rules",
}

var testDefaults = engine.ModelDefaults{Model: "default-model", Effort: engine.EffortMedium, Summary: engine.SummaryAuto}

var testParent = engine.Config{
	Cwd:      "/work",
	Model:    "parent-model",
	Features: engine.Features{SubAgents: true},
}

func waitTerminal(t *testing.T, m *Manager, id string) types.SubAgentPoll {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return p
}
