package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClaudeAdapter runs one non-interactive claude CLI invocation per prompt.
type ClaudeAdapter struct {
	command      string
	workDir      string
	model        string
	systemPrompt string
	timeout      time.Duration
	procMgr      *ProcessManager
}

// claudeResponse is the CLI's --output-format json envelope. Older
// versions nest text blocks under result.content; newer ones put the text
// directly in result.
type claudeResponse struct {
	Result  json.RawMessage `json:"result"`
	IsError bool            `json:"is_error"`
	Model   string          `json:"model"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClaudeAdapter creates a claude CLI adapter. pm may be nil.
func NewClaudeAdapter(cfg Config, pm *ProcessManager) *ClaudeAdapter {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &ClaudeAdapter{
		command:      command,
		workDir:      cfg.WorkDir,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      timeout,
		procMgr:      pm,
	}
}

// Send runs the CLI with msg as the prompt.
func (a *ClaudeAdapter) Send(ctx context.Context, msg Message) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := newCommand(ctx, a.command, a.buildArgs(msg)...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, "", a.procMgr)
	if err != nil {
		if ctx.Err() != nil {
			err = MarkTransient(err)
		}
		return Response{Error: fmt.Sprintf("claude command failed: %v", err)}, err
	}

	resp, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{Error: fmt.Sprintf("failed to parse claude response: %v (stderr: %s)", err, stderr)}, err
	}
	return resp, nil
}

// Close is a no-op: each Send is its own subprocess.
func (a *ClaudeAdapter) Close() error { return nil }

func (a *ClaudeAdapter) buildArgs(msg Message) []string {
	args := []string{"-p", msg.Content, "--output-format", "json"}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	system := msg.SystemPrompt
	if system == "" {
		system = a.systemPrompt
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}
	return args
}

func parseClaudeResponse(data []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var content string
	var text string
	if err := json.Unmarshal(cr.Result, &text); err == nil {
		content = text
	} else {
		var nested struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(cr.Result, &nested); err != nil {
			return Response{}, fmt.Errorf("unexpected result shape: %w", err)
		}
		var b strings.Builder
		for _, item := range nested.Content {
			if item.Type == "text" {
				b.WriteString(item.Text)
			}
		}
		content = b.String()
	}

	if cr.IsError {
		return Response{}, fmt.Errorf("claude reported an error: %s", content)
	}
	return Response{
		Content:      content,
		Model:        cr.Model,
		InputTokens:  cr.Usage.InputTokens,
		OutputTokens: cr.Usage.OutputTokens,
	}, nil
}
