package orchestrator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/papergen/papergen-be/internal/generator"
)

// RetryPolicy bounds the attempts of a single stage invocation: transient
// failures retry with exponential backoff and jitter, fatal failures stop
// immediately. It does not govern whole-job retries; the queue's redelivery
// does that.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Jitter         float64 // fraction of the delay added as random jitter
	AttemptTimeout time.Duration

	// Sleep is the inter-attempt wait; tests inject a recorder here.
	// nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// randFloat is the jitter source, injectable for determinism.
	randFloat func() float64
}

// DefaultRetryPolicy returns the stock policy: 3 attempts, delays doubling
// from 1s capped at 10s, 25% jitter, 90s per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		Jitter:         0.25,
		AttemptTimeout: 90 * time.Second,
	}
}

// Delay returns the backoff before the attempt following the given completed
// attempt count: base * 2^(attempt-1), capped, plus jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		randFloat := p.randFloat
		if randFloat == nil {
			randFloat = rand.Float64
		}
		delay += time.Duration(randFloat() * p.Jitter * float64(delay))
	}

	return delay
}

// Do runs fn under the policy. The last error is returned once attempts are
// exhausted; non-transient errors (fatal stage failures, infrastructure
// errors, context cancellation) return immediately.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, stage string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}

		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !generator.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn("Stage attempt failed, retrying",
			slog.String("stage", stage),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("retry_after", delay),
			slog.String("error", err.Error()),
		)

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
