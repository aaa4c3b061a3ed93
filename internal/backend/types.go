package backend

import (
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Message is one prompt sent to a model backend.
type Message struct {
	Content      string
	SystemPrompt string
	// SessionID and Role identify the run and role the prompt belongs to.
	// Adapters ignore them; decorators use them for transcripts and breakers.
	SessionID string
	Role      runstate.Role
}

// Response is the model's reply.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Error        string
}

// Config selects and configures a backend adapter.
type Config struct {
	Type         string   // "claude" or "command"
	Command      string   // executable; defaults to "claude" for the claude type
	Args         []string // extra arguments for the command type
	WorkDir      string
	Model        string
	SystemPrompt string
	Timeout      time.Duration // per-call limit; zero means DefaultLLMTimeout
}
