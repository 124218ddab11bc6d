package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. The set is closed; every error that
// crosses a component boundary carries exactly one code.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeRateLimit      Code = "RATE_LIMIT"
	CodeTransient      Code = "TRANSIENT_NETWORK"
	CodeNameCollision  Code = "NAME_COLLISION"
	CodeNameExhausted  Code = "NAME_GENERATION_EXHAUSTED"
	CodeGeneration     Code = "GENERATION_ERROR"
	CodePartialCommit  Code = "PARTIAL_COMMIT"
)

// Error is the classified error carried between components. Retryable
// reports whether retrying the same call can reasonably succeed.
type Error struct {
	Code        Code
	Message     string
	Details     map[string]any
	Suggestions []string
	Retryable   bool

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a classified error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Suggestions: suggestionsFor(code),
		Retryable:   retryableFor(code),
	}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a classified error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// PartialCommit builds the commit-failure error that records exactly
// which files already reached the remote before the failure.
func PartialCommit(committed []string, cause error) *Error {
	e := Wrap(CodePartialCommit, fmt.Sprintf("commit incomplete: %d file(s) already pushed", len(committed)), cause)
	return e.WithDetail("committed_files", committed)
}

// CodeOf returns the code of a classified error, or "" when err does
// not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is classified and marked retryable.
// Unclassified errors are never retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// AsError extracts the classified error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func retryableFor(code Code) bool {
	switch code {
	case CodeRateLimit, CodeTransient:
		return true
	default:
		return false
	}
}

func suggestionsFor(code Code) []string {
	switch code {
	case CodeValidation:
		return []string{
			"Check the request payload against the documented contract",
			"Verify the repository locator uses the host/owner/name shape",
		}
	case CodeAuthentication:
		return []string{
			"Verify the GitHub token or App credentials are set and not expired",
			"Ensure the credential has write access to the target repository",
		}
	case CodeNotFound:
		return []string{
			"Confirm the repository, branch or file exists",
			"Check whether the credential can see the repository",
		}
	case CodeRateLimit:
		return []string{
			"Wait for the rate-limit window to reset before retrying",
			"Reduce the request rate or use a credential with a higher quota",
		}
	case CodeTransient:
		return []string{
			"Retry the request; the failure was transient",
			"Check GitHub status if the problem persists",
		}
	case CodeNameCollision:
		return []string{
			"Choose a different branch name",
			"Omit the branch name to let the system generate a unique one",
		}
	case CodeNameExhausted:
		return []string{
			"Retry with a more specific request text",
			"Supply an explicit branch name",
		}
	case CodeGeneration:
		return []string{
			"Rephrase the change request with more detail",
			"Verify the generator provider credentials and model",
		}
	case CodePartialCommit:
		return []string{
			"Inspect the branch and the listed files before retrying",
			"Clean up the branch manually; no automatic rollback is performed",
		}
	default:
		return nil
	}
}
