package backend

import (
	"context"
	"log/slog"
	"time"
)

// Resilient wraps a Backend with retries and a circuit breaker.
type Resilient struct {
	inner    Backend
	target   string
	policy   RetryPolicy
	breakers *BreakerRegistry
	logger   *slog.Logger
	// OnRetry is called before each retry; used for metrics.
	OnRetry func(target string)
}

// NewResilient wraps inner. target names the breaker, usually the
// backend type.
func NewResilient(inner Backend, target string, policy RetryPolicy, breakers *BreakerRegistry, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if breakers == nil {
		breakers = NewBreakerRegistry(logger)
	}
	return &Resilient{inner: inner, target: target, policy: policy, breakers: breakers, logger: logger}
}

// Send forwards msg to the wrapped backend, retrying transient failures.
func (r *Resilient) Send(ctx context.Context, msg Message) (Response, error) {
	onRetry := func(err error, wait time.Duration) {
		r.logger.Warn("retrying model call",
			"target", r.target, "session_id", msg.SessionID, "role", msg.Role, "wait", wait, "error", err)
		if r.OnRetry != nil {
			r.OnRetry(r.target)
		}
	}
	return Do(ctx, r.policy, r.breakers.Get(r.target), onRetry, func(ctx context.Context) (Response, error) {
		return r.inner.Send(ctx, msg)
	})
}

// Close closes the wrapped backend.
func (r *Resilient) Close() error { return r.inner.Close() }
