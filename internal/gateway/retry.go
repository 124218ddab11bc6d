package gateway

import (
	"context"
	"log"
	"time"
)

// Policy is the retry policy applied to every remote call. Only
// rate-limit and transient errors are retried; everything else fails
// on the first attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy returns the standard policy: three attempts with
// exponential backoff starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Do runs fn up to MaxAttempts times, classifying every failure. The
// returned error is always classified. Rate-limit waits honor the
// service's reset hint, capped at MaxDelay.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		classified := Classify(err)
		if !classified.Retryable || attempt == attempts {
			return classified
		}
		lastErr = classified

		wait := delay
		if hint, ok := resetDelay(err); ok && hint > wait {
			wait = hint
		}
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}

		log.Printf("[Gateway] %s failed (attempt %d/%d), retrying in %s: %v", op, attempt, attempts, wait, classified)

		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
