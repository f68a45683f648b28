package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/fleet/internal/engine"
	"github.com/jeanpaul/fleet/internal/types"
)

// scriptedCompleter replays responses in order. A nil response blocks until
// the request context is canceled.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []*openai.ChatCompletion
	errs      []error
	calls     []openai.ChatCompletionNewParams
}

func (c *scriptedCompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	c.mu.Lock()
	c.calls = append(c.calls, params)
	n := len(c.calls) - 1
	var resp *openai.ChatCompletion
	var err error
	if n < len(c.errs) {
		err = c.errs[n]
	}
	if n < len(c.responses) {
		resp = c.responses[n]
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if resp == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, nil
}

func (c *scriptedCompleter) call(i int) openai.ChatCompletionNewParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

func reply(content string, usage int64) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
		Usage:   openai.CompletionUsage{PromptTokens: usage, CompletionTokens: usage, TotalTokens: 2 * usage},
	}
}

func toolCall(id, name, args string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ChatCompletionMessageToolCall{{
				ID:       id,
				Function: openai.ChatCompletionMessageToolCallFunction{Name: name, Arguments: args},
			}},
		}}},
	}
}

func start(t *testing.T, c Completer, cfg engine.Config) engine.Session {
	t.Helper()
	if cfg.Model == "" {
		cfg.Model = "test-model"
	}
	sess, err := New(Options{Completer: c}).Start(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	ev := next(t, sess)
	require.IsType(t, engine.SessionConfigured{}, ev.Msg)
	return sess
}

func next(t *testing.T, sess engine.Session) engine.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := sess.NextEvent(ctx)
	require.NoError(t, err)
	return ev
}

func submit(t *testing.T, sess engine.Session, text string) string {
	t.Helper()
	id, err := sess.Submit(context.Background(), engine.UserTurn{Items: []engine.InputItem{engine.TextInput{Text: text}}})
	require.NoError(t, err)
	return id
}

func TestStart_RequiresCompleter(t *testing.T) {
	_, err := New(Options{}).Start(context.Background(), engine.Config{})
	assert.Error(t, err)
}

func TestTurn_MessageAndCompletion(t *testing.T) {
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{reply("all done", 10)}}
	sess := start(t, c, engine.Config{})
	id := submit(t, sess, "do it\n")

	ev := next(t, sess)
	assert.Equal(t, id, ev.ID)
	tc, ok := ev.Msg.(engine.TokenCount)
	require.True(t, ok)
	require.NotNil(t, tc.Info)
	assert.Equal(t, int64(20), tc.Info.Total.BlendedTotal())

	assert.Equal(t, engine.AgentMessage{Message: "all done"}, next(t, sess).Msg)

	ev = next(t, sess)
	assert.Equal(t, id, ev.ID)
	done, ok := ev.Msg.(engine.TaskComplete)
	require.True(t, ok)
	require.NotNil(t, done.LastAgentMessage)
	assert.Equal(t, "all done", *done.LastAgentMessage)

	params := c.call(0)
	assert.Equal(t, "test-model", string(params.Model))
	assert.Len(t, params.Messages, 2)
}

func TestTurn_ToolCallAnnouncedAndAnswered(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{
		toolCall("c1", "read_file", `{"path":"a.txt"}`),
		reply("read it", 1),
	}}
	sess := start(t, c, engine.Config{Cwd: dir})
	submit(t, sess, "read a.txt")

	assert.Equal(t, engine.TokenCount{}, next(t, sess).Msg)
	assert.Equal(t, engine.ReadFileToolCall{CallID: "c1", Path: "a.txt"}, next(t, sess).Msg)
	tc := next(t, sess).Msg.(engine.TokenCount)
	require.NotNil(t, tc.Info)
	assert.Equal(t, int64(2), tc.Info.Total.TotalTokens)
	assert.Equal(t, engine.AgentMessage{Message: "read it"}, next(t, sess).Msg)
	assert.IsType(t, engine.TaskComplete{}, next(t, sess).Msg)

	// system, user, assistant tool call, tool reply
	assert.Len(t, c.call(1).Messages, 4)
}

func TestTurn_InvalidToolArgsNotAnnounced(t *testing.T) {
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{
		toolCall("c1", "read_file", `{}`),
		reply("", 0),
	}}
	sess := start(t, c, engine.Config{Cwd: t.TempDir()})
	submit(t, sess, "x")

	assert.Equal(t, engine.TokenCount{}, next(t, sess).Msg)
	assert.Equal(t, engine.TokenCount{}, next(t, sess).Msg)
	done := next(t, sess).Msg.(engine.TaskComplete)
	assert.Nil(t, done.LastAgentMessage)
}

func TestTurn_Interrupt(t *testing.T) {
	c := &scriptedCompleter{}
	sess := start(t, c, engine.Config{})
	id := submit(t, sess, "hang")

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.calls) == 1
	}, 5*time.Second, 5*time.Millisecond)

	_, err := sess.Submit(context.Background(), engine.Interrupt{})
	require.NoError(t, err)

	ev := next(t, sess)
	assert.Equal(t, id, ev.ID)
	assert.IsType(t, engine.TurnAborted{}, ev.Msg)
}

func TestTurn_InterruptQueuedTurn(t *testing.T) {
	c := &scriptedCompleter{}
	sess := start(t, c, engine.Config{})
	first := submit(t, sess, "hang")
	second := submit(t, sess, "queued")

	_, err := sess.Submit(context.Background(), engine.Interrupt{})
	require.NoError(t, err)

	ids := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := next(t, sess)
		assert.IsType(t, engine.TurnAborted{}, ev.Msg)
		ids[ev.ID] = true
	}
	assert.Equal(t, map[string]bool{first: true, second: true}, ids)
}

func TestTurn_CompleterError(t *testing.T) {
	c := &scriptedCompleter{errs: []error{&openai.Error{StatusCode: 401}}}
	sess := start(t, c, engine.Config{})
	id := submit(t, sess, "x")

	ev := next(t, sess)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, engine.Error{Message: "authentication failed, check the API key"}, ev.Msg)
}

func TestTurn_MaxTurns(t *testing.T) {
	call := toolCall("c", "update_plan", `{"plan":[{"step":"a","status":"pending"}]}`)
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{call, call}}
	sess := start(t, c, engine.Config{MaxTurns: 2})
	submit(t, sess, "loop")

	var last engine.EventMsg
	plans := 0
	for {
		last = next(t, sess).Msg
		if _, ok := last.(engine.PlanUpdate); ok {
			plans++
		}
		if _, ok := last.(engine.Error); ok {
			break
		}
	}
	assert.Equal(t, 2, plans)
	assert.Equal(t, engine.Error{Message: "turn stopped after 2 model calls"}, last)
}

func TestTurn_NoModel(t *testing.T) {
	sess, err := New(Options{Completer: &scriptedCompleter{}}).Start(context.Background(), engine.Config{})
	require.NoError(t, err)
	defer sess.Close()
	next(t, sess)
	submit(t, sess, "x")
	assert.Equal(t, engine.Error{Message: "no model configured"}, next(t, sess).Msg)
}

func TestTurn_ModelOverrideAndEffort(t *testing.T) {
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{reply("ok", 1)}}
	sess := start(t, c, engine.Config{})
	_, err := sess.Submit(context.Background(), engine.UserTurn{
		Items:  []engine.InputItem{engine.TextInput{Text: "x"}},
		Model:  "other",
		Effort: engine.EffortHigh,
	})
	require.NoError(t, err)
	for {
		if _, ok := next(t, sess).Msg.(engine.TaskComplete); ok {
			break
		}
	}
	assert.Equal(t, "other", string(c.call(0).Model))
	assert.Equal(t, "high", string(c.call(0).ReasoningEffort))
}

func TestSession_Close(t *testing.T) {
	sess := start(t, &scriptedCompleter{}, engine.Config{})
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	_, err := sess.Submit(context.Background(), engine.Interrupt{})
	assert.ErrorIs(t, err, engine.ErrSessionClosed)
	_, err = sess.NextEvent(context.Background())
	assert.ErrorIs(t, err, engine.ErrSessionClosed)
}

type nopController struct{}

func (nopController) SpawnTemplate(context.Context, string, string) (string, error) { return "", nil }
func (nopController) List() []types.SubAgentSummary                                { return nil }
func (nopController) Poll(string, bool) (types.SubAgentPoll, bool)                  { return types.SubAgentPoll{}, false }
func (nopController) Cancel(string) bool                                            { return false }
func (nopController) Wait(context.Context, string) (types.SubAgentPoll, error) {
	return types.SubAgentPoll{}, nil
}

func TestStart_SubAgentToolsFollowFeature(t *testing.T) {
	c := &scriptedCompleter{responses: []*openai.ChatCompletion{reply("a", 0), reply("b", 0)}}
	e := New(Options{Completer: c, SubAgents: nopController{}})

	has := func(params openai.ChatCompletionNewParams) bool {
		for _, tool := range params.Tools {
			if tool.Function.Name == "spawn_agent" {
				return true
			}
		}
		return false
	}
	run := func(features engine.Features) {
		sess, err := e.Start(context.Background(), engine.Config{Model: "m", Features: features})
		require.NoError(t, err)
		defer sess.Close()
		next(t, sess)
		submit(t, sess, "x")
		for {
			if _, ok := next(t, sess).Msg.(engine.TaskComplete); ok {
				return
			}
		}
	}
	run(engine.Features{SubAgents: true})
	run(engine.Features{})
	assert.True(t, has(c.call(0)))
	assert.False(t, has(c.call(1)))
}

func TestUserText(t *testing.T) {
	dir := t.TempDir()
	skill := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(skill, []byte("lint everything\n"), 0644))
	items := []engine.InputItem{
		engine.TextInput{Text: "rules\n"},
		engine.SkillInput{Name: "lint", Path: skill},
		engine.SkillInput{Name: "gone", Path: filepath.Join(dir, "missing.md")},
		engine.TextInput{Text: "task\n"},
	}

	text, problems := userText(items, true)
	assert.Equal(t, "rules\n<skill name=\"lint\">\nlint everything\n</skill>\ntask\n", text)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "skill gone")

	text, problems = userText(items, false)
	assert.Equal(t, "rules\ntask\n", text)
	assert.Len(t, problems, 2)
}

func TestSystemPrompt(t *testing.T) {
	p := systemPrompt(engine.Config{Cwd: "/work", UserInstructions: "use tabs", Features: engine.Features{SubAgents: true}}, nil)
	assert.Contains(t, p, "Working directory: /work")
	assert.Contains(t, p, "## Project Instructions\nuse tabs")
	assert.Contains(t, p, "spawn_agent")
}

func TestRetry(t *testing.T) {
	assert.True(t, isRetryable(&openai.Error{StatusCode: 429}))
	assert.True(t, isRetryable(&openai.Error{StatusCode: 503}))
	assert.False(t, isRetryable(&openai.Error{StatusCode: 400}))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(context.Canceled))

	c := &scriptedCompleter{
		errs:      []error{&openai.Error{StatusCode: 503}},
		responses: []*openai.ChatCompletion{nil, reply("ok", 1)},
	}
	r := &retryCompleter{inner: c, maxRetries: 2, baseDelay: time.Millisecond}
	resp, err := r.Complete(context.Background(), openai.ChatCompletionNewParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)

	c = &scriptedCompleter{errs: []error{&openai.Error{StatusCode: 400}}}
	r = &retryCompleter{inner: c, maxRetries: 2, baseDelay: time.Millisecond}
	_, err = r.Complete(context.Background(), openai.ChatCompletionNewParams{})
	assert.Error(t, err)
	assert.Len(t, c.calls, 1)
}

func TestFriendlyError(t *testing.T) {
	assert.Equal(t, "bad key", friendlyError(&openai.Error{StatusCode: 401, Message: "bad key"}))
	assert.Equal(t, "connection refused (is the service running?)", friendlyError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")))
	assert.Equal(t, "boom", friendlyError(errors.New("boom")))
}
