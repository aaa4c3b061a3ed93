package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryPolicy configures retries at the I/O boundary.
type RetryPolicy struct {
	MaxAttempts         int           // total attempts including the first
	InitialInterval     time.Duration // delay before the second attempt
	MaxInterval         time.Duration // cap on any single delay
	Multiplier          float64
	RandomizationFactor float64
	// Retryable decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy makes 4 attempts with exponential backoff from 2s,
// capped at 10s, retrying only transient errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         4,
		InitialInterval:     2 * time.Second,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
		Retryable:           IsTransient,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.RandomizationFactor
	eb.MaxElapsedTime = 0
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// BreakerRegistry holds one circuit breaker per named target (a model
// provider or an HTTP host).
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry(logger *slog.Logger) *BreakerRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

// Get returns the breaker for target, creating it on first use.
func (r *BreakerRegistry) Get(target string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target,
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "target", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation and permanent errors say nothing about
			// the target's health.
			return err == nil || errors.Is(err, context.Canceled) || !IsTransient(err)
		},
	})
	r.breakers[target] = cb
	return cb
}

// Do runs op under policy, routing each attempt through cb when cb is
// non-nil. onRetry, if set, is called before each retry.
func Do[T any](ctx context.Context, policy RetryPolicy, cb *gobreaker.CircuitBreaker, onRetry func(error, time.Duration), op func(context.Context) (T, error)) (T, error) {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var result T
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		var v T
		var err error
		if cb != nil {
			var out any
			out, err = cb.Execute(func() (any, error) { return op(ctx) })
			if err == nil {
				v = out.(T)
			}
		} else {
			v, err = op(ctx)
		}

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	notify := func(err error, d time.Duration) {
		if onRetry != nil {
			onRetry(err, d)
		}
	}
	err := backoff.RetryNotify(operation, policy.backOff(ctx), notify)
	return result, err
}
