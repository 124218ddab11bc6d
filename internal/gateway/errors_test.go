package gateway

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/forgeops/autopr/internal/apperr"
)

func apiError(status int, message string) *github.ErrorResponse {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  message,
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   apperr.Code
	}{
		{401, apperr.CodeAuthentication},
		{403, apperr.CodeAuthentication},
		{404, apperr.CodeNotFound},
		{422, apperr.CodeValidation},
		{429, apperr.CodeRateLimit},
		{500, apperr.CodeTransient},
		{502, apperr.CodeTransient},
	}

	for _, tt := range tests {
		got := Classify(apiError(tt.status, "nope"))
		if got.Code != tt.want {
			t.Errorf("status %d classified as %s, want %s", tt.status, got.Code, tt.want)
		}
	}
}

func TestClassifyRateLimitCarriesReset(t *testing.T) {
	reset := time.Now().Add(time.Minute)
	err := Classify(&github.RateLimitError{
		Rate: github.Rate{Reset: github.Timestamp{Time: reset}},
	})

	if err.Code != apperr.CodeRateLimit {
		t.Fatalf("code = %s, want RATE_LIMIT", err.Code)
	}
	if !err.Retryable {
		t.Fatal("rate limit must be retryable")
	}
	if _, ok := err.Details["reset_at"]; !ok {
		t.Fatal("missing reset_at detail")
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := apperr.New(apperr.CodeNameCollision, "branch taken")
	wrapped := fmt.Errorf("creating branch: %w", orig)

	if got := Classify(wrapped); got != orig {
		t.Fatalf("Classify re-wrapped an already classified error: %v", got)
	}
}

func TestClassifyContextAndNetwork(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got.Code != apperr.CodeTransient {
		t.Errorf("deadline classified as %s", got.Code)
	}
	if got := Classify(fmt.Errorf("boom")); got.Code != apperr.CodeTransient {
		t.Errorf("unknown error classified as %s", got.Code)
	}
}

func TestResetDelay(t *testing.T) {
	wait := 42 * time.Second
	abuse := &github.AbuseRateLimitError{RetryAfter: &wait}
	if d, ok := resetDelay(abuse); !ok || d != wait {
		t.Errorf("resetDelay(abuse) = %v, %v", d, ok)
	}

	if _, ok := resetDelay(apiError(500, "x")); ok {
		t.Error("resetDelay returned a hint for a plain server error")
	}
}

func TestIsAlreadyExists(t *testing.T) {
	if !isAlreadyExists(apiError(422, "Reference already exists")) {
		t.Error("did not recognize the reference collision")
	}
	if isAlreadyExists(apiError(422, "Validation Failed")) {
		t.Error("flagged an unrelated 422 as a collision")
	}
	if isAlreadyExists(apiError(404, "already exists")) {
		t.Error("flagged a non-422 status as a collision")
	}
}
