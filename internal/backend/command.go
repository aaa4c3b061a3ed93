package backend

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommandAdapter pipes the prompt to an arbitrary CLI on stdin and treats
// stdout as the reply. It fits local model runners such as
// "ollama run <model>".
type CommandAdapter struct {
	command string
	args    []string
	workDir string
	timeout time.Duration
	procMgr *ProcessManager
}

// NewCommandAdapter creates a CommandAdapter. cfg.Command is required.
func NewCommandAdapter(cfg Config, pm *ProcessManager) (*CommandAdapter, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command backend needs a command")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &CommandAdapter{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		workDir: cfg.WorkDir,
		timeout: timeout,
		procMgr: pm,
	}, nil
}

// Send writes the system prompt (if any) and the prompt to the command's
// stdin.
func (a *CommandAdapter) Send(ctx context.Context, msg Message) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	input := msg.Content
	if msg.SystemPrompt != "" {
		input = msg.SystemPrompt + "\n\n" + msg.Content
	}

	cmd := newCommand(ctx, a.command, a.args...)
	cmd.Dir = a.workDir
	stdout, _, err := executeCommand(ctx, cmd, input, a.procMgr)
	if err != nil {
		if ctx.Err() != nil {
			err = MarkTransient(err)
		}
		return Response{Error: err.Error()}, err
	}
	return Response{Content: strings.TrimSpace(string(stdout))}, nil
}

// Close is a no-op.
func (a *CommandAdapter) Close() error { return nil }
