package gateway

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/forgeops/autopr/internal/apperr"
)

// Classify maps an error from a GitHub call into the closed taxonomy.
// Already-classified errors pass through untouched.
func Classify(err error) *apperr.Error {
	if err == nil {
		return nil
	}
	if e := apperr.AsError(err); e != nil {
		return e
	}

	var rateLimit *github.RateLimitError
	if errors.As(err, &rateLimit) {
		e := apperr.Wrap(apperr.CodeRateLimit, "GitHub primary rate limit exceeded", err)
		return e.WithDetail("reset_at", rateLimit.Rate.Reset.Time)
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		// Secondary rate limits behave like transient throttling.
		e := apperr.Wrap(apperr.CodeTransient, "GitHub secondary rate limit hit", err)
		if abuse.RetryAfter != nil {
			e.WithDetail("retry_after", abuse.RetryAfter.String())
		}
		return e
	}

	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		status := resp.Response.StatusCode
		switch {
		case status == 401 || status == 403:
			return apperr.Wrap(apperr.CodeAuthentication, "GitHub rejected the credential", err).
				WithDetail("status", status)
		case status == 404:
			return apperr.Wrap(apperr.CodeNotFound, "GitHub resource not found", err).
				WithDetail("status", status)
		case status == 429:
			return apperr.Wrap(apperr.CodeRateLimit, "GitHub primary rate limit exceeded", err).
				WithDetail("status", status)
		case status >= 500:
			return apperr.Wrap(apperr.CodeTransient, "GitHub server error", err).
				WithDetail("status", status)
		default:
			return apperr.Wrap(apperr.CodeValidation, "GitHub rejected the request", err).
				WithDetail("status", status)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.CodeTransient, "GitHub call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.CodeTransient, "GitHub call timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperr.Wrap(apperr.CodeTransient, "network failure reaching GitHub", err)
	}

	return apperr.Wrap(apperr.CodeTransient, "GitHub call failed", err)
}

// resetDelay extracts the service's wait hint from a rate-limit error.
func resetDelay(err error) (time.Duration, bool) {
	var rateLimit *github.RateLimitError
	if errors.As(err, &rateLimit) {
		if wait := time.Until(rateLimit.Rate.Reset.Time); wait > 0 {
			return wait, true
		}
		return 0, true
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) && abuse.RetryAfter != nil {
		return *abuse.RetryAfter, true
	}

	return 0, false
}

// isAlreadyExists reports whether err is GitHub's "Reference already
// exists" rejection from a ref creation.
func isAlreadyExists(err error) bool {
	var resp *github.ErrorResponse
	if !errors.As(err, &resp) || resp.Response == nil {
		return false
	}
	if resp.Response.StatusCode != 422 {
		return false
	}
	if strings.Contains(strings.ToLower(resp.Message), "already exists") {
		return true
	}
	for _, e := range resp.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already exists") {
			return true
		}
	}
	return false
}
