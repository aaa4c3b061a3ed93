// Package roles holds the default implementations of the research roles.
// Each role satisfies agent.Agent; roles that can fall back to a reduced
// result also satisfy agent.Degrader.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// ArtifactWriter stores a named artifact for a session and returns its path.
type ArtifactWriter interface {
	Write(sessionID, name string, data []byte) (string, error)
}

// LLM binds a model backend to the prompt conventions shared by roles.
type LLM struct {
	Backend      backend.Backend
	SystemPrompt string
	// Tokens counts tokens for metrics. Nil means CountTokens.
	Tokens func(string) int
}

// generate sends prompt on behalf of role and records token metrics on the
// shared context.
func (l *LLM) generate(ctx context.Context, role runstate.Role, in agent.Input, prompt string) (string, error) {
	if l == nil || l.Backend == nil {
		return "", errors.New("no model backend configured")
	}
	p := backend.Prompter{
		Backend:      l.Backend,
		SessionID:    in.Shared.SessionID,
		Role:         role,
		SystemPrompt: l.SystemPrompt,
	}
	reply, err := p.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", role, err)
	}
	count := l.Tokens
	if count == nil {
		count = CountTokens
	}
	in.Shared.AddMetric("llm_calls", 1)
	in.Shared.AddMetric("input_tokens", float64(count(prompt)))
	in.Shared.AddMetric("output_tokens", float64(count(reply)))
	return strings.TrimSpace(reply), nil
}

// decodeModelJSON locates the outermost JSON object or array in raw model
// output, repairs it if needed, and decodes it into v.
func decodeModelJSON(raw string, v any) error {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return errors.New("no JSON in model output")
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return errors.New("unterminated JSON in model output")
	}
	body := raw[start : end+1]
	if !json.Valid([]byte(body)) {
		repaired, err := jsonrepair.JSONRepair(body)
		if err != nil {
			return fmt.Errorf("failed to repair JSON: %w", err)
		}
		body = repaired
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return nil
}

// tasksContext renders assigned task descriptions for a prompt.
func tasksContext(tasks []string, limit int) string {
	if len(tasks) == 0 {
		return "General research on the topic"
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// writeArtifact stores data when a writer is configured. A failed write is
// counted in the role metrics and reported as an empty path.
func writeArtifact(w ArtifactWriter, in agent.Input, name string, data []byte) string {
	if w == nil {
		return ""
	}
	path, err := w.Write(in.Shared.SessionID, name, data)
	if err != nil {
		in.Shared.AddMetric("artifact_errors", 1)
		return ""
	}
	return path
}

// payloadJSON renders v for a prompt, cut to limit runes.
func payloadJSON(v any, limit int) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return truncate(string(data), limit)
}
