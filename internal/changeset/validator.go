package changeset

import (
	"fmt"
	"path"
	"strings"
)

// DefaultMaxContentSize is the per-file content ceiling.
const DefaultMaxContentSize = 1 << 20 // 1 MiB

const maxPathLength = 260

// File names that must never be touched by an automated change.
var protectedFiles = map[string]bool{
	".env":            true,
	".env.local":      true,
	".env.production": true,
	"id_rsa":          true,
	"id_dsa":          true,
	"id_ecdsa":        true,
	"id_ed25519":      true,
	"authorized_keys": true,
	"known_hosts":     true,
}

// Hidden directories an automated change may legitimately enter.
var allowedHiddenDirs = map[string]bool{
	".github": true,
	".vscode": true,
}

// Result is the aggregate verdict for a change-set. Any invalid entry
// fails the whole set closed; warnings proceed but are reported.
type Result struct {
	Verdict  ValidationStatus
	Errors   []string
	Warnings []string
}

// Valid reports whether the change-set may proceed to the gateway.
func (r *Result) Valid() bool {
	return r.Verdict != StatusInvalid
}

// Validator applies policy checks to a proposed change-set before any
// of it may reach the remote.
type Validator struct {
	MaxContentSize int
}

// NewValidator returns a validator with the default content ceiling.
func NewValidator() *Validator {
	return &Validator{MaxContentSize: DefaultMaxContentSize}
}

// Validate checks every change, records the per-change status, and
// returns the aggregate verdict.
func (v *Validator) Validate(changes []*Change) *Result {
	result := &Result{Verdict: StatusValid}
	seen := make(map[string]bool, len(changes))

	for _, c := range changes {
		errs, warns := v.validateOne(c)

		if seen[c.Path] {
			errs = append(errs, fmt.Sprintf("%s: duplicate entry for the same path", c.Path))
		}
		seen[c.Path] = true

		switch {
		case len(errs) > 0:
			c.setStatus(StatusInvalid, strings.Join(errs, "; "))
			result.Errors = append(result.Errors, errs...)
			result.Verdict = StatusInvalid
		case len(warns) > 0:
			c.setStatus(StatusWarning, strings.Join(warns, "; "))
			result.Warnings = append(result.Warnings, warns...)
			if result.Verdict == StatusValid {
				result.Verdict = StatusWarning
			}
		default:
			c.setStatus(StatusValid, "")
		}
	}

	return result
}

func (v *Validator) validateOne(c *Change) (errs, warns []string) {
	if err := validatePath(c.Path); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", c.Path, err))
	}

	max := v.MaxContentSize
	if max <= 0 {
		max = DefaultMaxContentSize
	}
	if len(c.Original()) > max || len(c.Proposed()) > max {
		errs = append(errs, fmt.Sprintf("%s: content exceeds %d byte ceiling", c.Path, max))
	}

	switch c.Op {
	case OpCreate:
		if c.NewContent == nil || *c.NewContent == "" {
			errs = append(errs, fmt.Sprintf("%s: create operation requires proposed content", c.Path))
		}
		if c.OriginalContent != nil {
			warns = append(warns, fmt.Sprintf("%s: create operation should not carry original content", c.Path))
		}
	case OpModify:
		if c.OriginalContent == nil {
			errs = append(errs, fmt.Sprintf("%s: modify operation requires original content", c.Path))
		}
		if c.NewContent == nil {
			errs = append(errs, fmt.Sprintf("%s: modify operation requires proposed content", c.Path))
		}
		if c.OriginalContent != nil && c.NewContent != nil && *c.OriginalContent == *c.NewContent {
			warns = append(warns, fmt.Sprintf("%s: modify operation has identical original and proposed content", c.Path))
		}
	case OpDelete:
		if c.OriginalContent == nil {
			errs = append(errs, fmt.Sprintf("%s: delete operation requires original content", c.Path))
		}
		if c.NewContent != nil {
			warns = append(warns, fmt.Sprintf("%s: delete operation should not carry proposed content", c.Path))
		}
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown operation %q", c.Path, c.Op))
	}

	return errs, warns
}

// validatePath rejects anything that could escape the repository root
// or touch files an automated workflow has no business changing.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if len(p) > maxPathLength {
		return fmt.Errorf("path exceeds %d characters", maxPathLength)
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return fmt.Errorf("path must be relative to the repository root")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path must use forward slashes")
	}

	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path escapes the repository root")
	}

	for _, r := range p {
		if r < 32 || strings.ContainsRune(`<>:"|?*`, r) {
			return fmt.Errorf("path contains invalid character %q", r)
		}
	}

	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return fmt.Errorf("path escapes the repository root")
		}
		if protectedFiles[strings.ToLower(part)] {
			return fmt.Errorf("path touches protected file %q", part)
		}
		if strings.HasPrefix(part, ".") && len(part) > 1 && !allowedHiddenDirs[part] && part != ".gitignore" {
			return fmt.Errorf("path enters hidden directory or file %q", part)
		}
	}

	return nil
}
