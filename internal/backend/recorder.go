package backend

import (
	"context"
	"log/slog"
)

// TranscriptSink persists prompt and reply text.
type TranscriptSink interface {
	SaveMessage(ctx context.Context, sessionID, role, direction, content string) error
}

// Transcript directions.
const (
	DirectionPrompt = "prompt"
	DirectionReply  = "reply"
)

// Recorder writes every prompt and reply that carries a session id to a
// TranscriptSink. Sink failures are logged and never fail the call.
type Recorder struct {
	inner  Backend
	sink   TranscriptSink
	logger *slog.Logger
}

// NewRecorder wraps inner.
func NewRecorder(inner Backend, sink TranscriptSink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{inner: inner, sink: sink, logger: logger}
}

// Send records msg, forwards it, and records the reply.
func (r *Recorder) Send(ctx context.Context, msg Message) (Response, error) {
	r.save(ctx, msg, DirectionPrompt, msg.Content)
	resp, err := r.inner.Send(ctx, msg)
	if err == nil {
		r.save(ctx, msg, DirectionReply, resp.Content)
	}
	return resp, err
}

// Close closes the wrapped backend.
func (r *Recorder) Close() error { return r.inner.Close() }

func (r *Recorder) save(ctx context.Context, msg Message, direction, content string) {
	if msg.SessionID == "" || r.sink == nil {
		return
	}
	if err := r.sink.SaveMessage(ctx, msg.SessionID, string(msg.Role), direction, content); err != nil {
		r.logger.Warn("failed to record transcript", "session_id", msg.SessionID, "role", msg.Role, "error", err)
	}
}
