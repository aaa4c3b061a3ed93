package roles

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const testSession = "sess-1"

// stubBackend answers prompts with a scripted function and records them.
type stubBackend struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
}

func (s *stubBackend) Send(_ context.Context, msg backend.Message) (backend.Response, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, msg.Content)
	s.mu.Unlock()
	text, err := s.reply(msg.Content)
	if err != nil {
		return backend.Response{}, err
	}
	return backend.Response{Content: text}, nil
}

func (s *stubBackend) Close() error { return nil }

func (s *stubBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func replyWith(text string) *stubBackend {
	return &stubBackend{reply: func(string) (string, error) { return text, nil }}
}

func failingBackend() *stubBackend {
	return &stubBackend{reply: func(string) (string, error) { return "", errors.New("model unavailable") }}
}

func testLLM(b backend.Backend) *LLM {
	return &LLM{Backend: b, Tokens: EstimateTokens}
}

// memArtifacts keeps artifacts in memory.
type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  bool
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{files: map[string][]byte{}}
}

func (m *memArtifacts) Write(sessionID, name string, data []byte) (string, error) {
	if m.fail {
		return "", errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return sessionID + "/" + name, nil
}

func (m *memArtifacts) file(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return string(data), ok
}

type priorOutputs map[runstate.Role]any

// newInput builds a role input from a run carrying the given prior outputs
// and citations.
func newInput(t *testing.T, req runstate.Requirements, prior priorOutputs, citations ...runstate.Citation) agent.Input {
	t.Helper()
	now := time.Now()
	rs := runstate.New(testSession, "Analyze the "+req.Topic, req, now)
	outs := map[runstate.Role]runstate.Output{}
	for role, v := range prior {
		out, err := runstate.NewOutput(v, now)
		require.NoError(t, err)
		outs[role] = out
	}
	require.NoError(t, rs.Apply(runstate.Update{Outputs: outs, Citations: citations, At: now}))
	return agent.Input{Shared: agent.NewShared(rs)}
}

// runRole executes a through an Executor so degrade handling and shared
// metric draining apply.
func runRole(t *testing.T, a agent.Agent, in agent.Input) agent.Outcome {
	t.Helper()
	ex := agent.NewExecutor(nil)
	ex.Register(a, agent.Policy{MarkCompleteOnFailure: true})
	out, err := ex.Run(context.Background(), a.Role(), in)
	require.NoError(t, err)
	return out
}

func TestDecodeModelJSON(t *testing.T) {
	t.Run("fenced object", func(t *testing.T) {
		var v struct {
			Summary string `json:"summary"`
		}
		err := decodeModelJSON("Sure:\n```json\n{\"summary\": \"ok\"}\n```", &v)
		require.NoError(t, err)
		assert.Equal(t, "ok", v.Summary)
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		var v []map[string]string
		err := decodeModelJSON(`[{"title": "Overview"},]`, &v)
		require.NoError(t, err)
		require.Len(t, v, 1)
		assert.Equal(t, "Overview", v[0]["title"])
	})

	t.Run("no JSON", func(t *testing.T) {
		var v any
		assert.Error(t, decodeModelJSON("I cannot help with that", &v))
	})
}

func TestLLMGenerateRecordsMetrics(t *testing.T) {
	b := replyWith("  one two three  ")
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)

	reply, err := testLLM(b).generate(context.Background(), runstate.RoleAnalyst, in, "four words of prompt")
	require.NoError(t, err)
	assert.Equal(t, "one two three", reply)

	ex := agent.NewExecutor(nil)
	ex.Register(stubAgent{}, agent.Policy{})
	out, err := ex.Run(context.Background(), runstate.RoleAnalyst, in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Result.Metrics["llm_calls"])
	assert.Equal(t, 5.0, out.Result.Metrics["input_tokens"])
	assert.Equal(t, 3.0, out.Result.Metrics["output_tokens"])
}

func TestLLMGenerateWithoutBackend(t *testing.T) {
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)
	var l *LLM
	_, err := l.generate(context.Background(), runstate.RoleAnalyst, in, "prompt")
	assert.Error(t, err)
}

type stubAgent struct{}

func (stubAgent) Role() runstate.Role { return runstate.RoleAnalyst }

func (stubAgent) Execute(context.Context, agent.Input) (agent.Result, error) {
	return agent.Completed(runstate.RoleAnalyst, map[string]string{})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("   "))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 3, EstimateTokens("a b c"))
	assert.Equal(t, 10, EstimateTokens(strings.Repeat("x", 40)))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "short", truncate("short", 10))
}

func TestWriteArtifactFailureCounted(t *testing.T) {
	in := newInput(t, runstate.DefaultRequirements("EV market"), nil)
	store := newMemArtifacts()
	store.fail = true

	assert.Empty(t, writeArtifact(store, in, "x.txt", []byte("data")))
	assert.Empty(t, writeArtifact(nil, in, "x.txt", []byte("data")))

	out := runRole(t, stubAgent{}, in)
	assert.Equal(t, 1.0, out.Result.Metrics["artifact_errors"])
}
