package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/forgeops/autopr/internal/apperr"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDoRateLimitedTwiceThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), "test op", func() error {
		calls++
		if calls <= 2 {
			return apiError(429, "rate limited")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do returned %v, want success after retries", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (two retries)", calls)
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), "test op", func() error {
		calls++
		return apiError(404, "not found")
	})

	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("error code = %s, want NOT_FOUND", apperr.CodeOf(err))
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retries)", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), "test op", func() error {
		calls++
		return apiError(429, "rate limited")
	})

	if apperr.CodeOf(err) != apperr.CodeRateLimit {
		t.Fatalf("error code = %s, want RATE_LIMIT", apperr.CodeOf(err))
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want MaxAttempts", calls)
	}
}

func TestDoSuccessFirstTry(t *testing.T) {
	calls := 0
	if err := fastPolicy().Do(context.Background(), "test op", func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastPolicy().Do(ctx, "test op", func() error {
		calls++
		return apiError(500, "server error")
	})

	if err == nil {
		t.Fatal("Do succeeded despite canceled context")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}

func TestDoZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), "test op", func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
