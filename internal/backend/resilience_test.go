package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// scriptedBackend replays a fixed sequence of responses and errors.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []any
	callCount int
}

func (b *scriptedBackend) Send(ctx context.Context, msg Message) (Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.callCount >= len(b.responses) {
		return Response{}, fmt.Errorf("unexpected call %d (only %d responses configured)", b.callCount+1, len(b.responses))
	}
	resp := b.responses[b.callCount]
	b.callCount++

	switch v := resp.(type) {
	case Response:
		return v, nil
	case error:
		return Response{}, v
	default:
		return Response{}, fmt.Errorf("invalid response type: %T", v)
	}
}

func (b *scriptedBackend) Close() error { return nil }

func (b *scriptedBackend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCount
}

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 5 * time.Millisecond
	return p
}

// TestResilient_TransientThenSuccess verifies transient failures are retried.
func TestResilient_TransientThenSuccess(t *testing.T) {
	sb := &scriptedBackend{responses: []any{
		MarkTransient(errors.New("503")),
		MarkTransient(errors.New("timeout")),
		Response{Content: "success"},
	}}
	retries := 0
	r := NewResilient(sb, "claude", fastPolicy(), nil, nil)
	r.OnRetry = func(string) { retries++ }

	resp, err := r.Send(context.Background(), Message{Content: "test"})
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if resp.Content != "success" {
		t.Errorf("content mismatch: got %q, want success", resp.Content)
	}
	if sb.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", sb.CallCount())
	}
	if retries != 2 {
		t.Errorf("expected 2 retry notifications, got %d", retries)
	}
}

// TestResilient_StopsAfterMaxAttempts verifies the attempt cap.
func TestResilient_StopsAfterMaxAttempts(t *testing.T) {
	responses := make([]any, 10)
	for i := range responses {
		responses[i] = MarkTransient(fmt.Errorf("flaky %d", i+1))
	}
	sb := &scriptedBackend{responses: responses}
	r := NewResilient(sb, "claude", fastPolicy(), nil, nil)

	_, err := r.Send(context.Background(), Message{Content: "test"})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if sb.CallCount() != 4 {
		t.Errorf("expected 4 attempts, got %d", sb.CallCount())
	}
}

// TestResilient_PermanentErrorNotRetried verifies non-transient errors fail fast.
func TestResilient_PermanentErrorNotRetried(t *testing.T) {
	sb := &scriptedBackend{responses: []any{errors.New("invalid prompt"), Response{Content: "never"}}}
	r := NewResilient(sb, "claude", fastPolicy(), nil, nil)

	_, err := r.Send(context.Background(), Message{Content: "test"})
	if err == nil || err.Error() != "invalid prompt" {
		t.Fatalf("expected the permanent error unchanged, got %v", err)
	}
	if sb.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", sb.CallCount())
	}
}

// TestResilient_CircuitOpens verifies the breaker trips after consecutive
// transient failures and then rejects calls without reaching the backend.
func TestResilient_CircuitOpens(t *testing.T) {
	responses := make([]any, 20)
	for i := range responses {
		responses[i] = MarkTransient(fmt.Errorf("persistent error %d", i+1))
	}
	sb := &scriptedBackend{responses: responses}
	registry := NewBreakerRegistry(nil)
	r := NewResilient(sb, "flaky-provider", fastPolicy(), registry, nil)

	// First Send: 4 failed attempts. Second Send trips the breaker on its
	// first attempt (5 consecutive failures), then fails fast.
	_, _ = r.Send(context.Background(), Message{Content: "a"})
	_, err := r.Send(context.Background(), Message{Content: "b"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if registry.Get("flaky-provider").State() != gobreaker.StateOpen {
		t.Errorf("expected breaker open, got %v", registry.Get("flaky-provider").State())
	}
	if sb.CallCount() != 5 {
		t.Errorf("expected 5 backend calls, got %d", sb.CallCount())
	}
}

// TestResilient_ContextCancelled_StopsRetry verifies cancellation stops retries.
func TestResilient_ContextCancelled_StopsRetry(t *testing.T) {
	responses := make([]any, 10)
	for i := range responses {
		responses[i] = MarkTransient(errors.New("slow"))
	}
	sb := &scriptedBackend{responses: responses}
	policy := DefaultRetryPolicy()
	policy.InitialInterval = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewResilient(sb, "claude", policy, nil, nil).Send(ctx, Message{Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation did not stop retries promptly: %v", time.Since(start))
	}
	if sb.CallCount() > 2 {
		t.Errorf("expected at most 2 calls, got %d", sb.CallCount())
	}
}

// TestBreakerRegistry_PerTarget verifies breakers are shared per target.
func TestBreakerRegistry_PerTarget(t *testing.T) {
	r := NewBreakerRegistry(nil)
	if r.Get("a") != r.Get("a") {
		t.Error("expected same breaker for same target")
	}
	if r.Get("a") == r.Get("b") {
		t.Error("expected different breakers for different targets")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// TestIsTransient covers the error classification table.
func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request body"), false},
		{"marked", MarkTransient(errors.New("x")), true},
		{"wrapped marked", fmt.Errorf("call: %w", MarkTransient(errors.New("x"))), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"429", &StatusError{URL: "u", StatusCode: 429}, true},
		{"503", &StatusError{URL: "u", StatusCode: 503}, true},
		{"404", &StatusError{URL: "u", StatusCode: 404}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
