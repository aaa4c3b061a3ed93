// Package backend is the I/O boundary of the workflow: model backends,
// outbound HTTP, and the retry and circuit-breaker policy around both.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// DefaultLLMTimeout bounds a single model call.
const DefaultLLMTimeout = 120 * time.Second

// Backend sends prompts to a language model.
type Backend interface {
	Send(ctx context.Context, msg Message) (Response, error)
	Close() error
}

// New creates the adapter selected by cfg.Type.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	switch cfg.Type {
	case "", "claude":
		return NewClaudeAdapter(cfg, pm), nil
	case "command":
		return NewCommandAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// Prompter binds a backend to one session and role so it can serve as a
// plain text generator.
type Prompter struct {
	Backend      Backend
	SessionID    string
	Role         runstate.Role
	SystemPrompt string
}

// Generate sends prompt and returns the reply text.
func (p Prompter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.Backend.Send(ctx, Message{
		Content:      prompt,
		SystemPrompt: p.SystemPrompt,
		SessionID:    p.SessionID,
		Role:         p.Role,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
