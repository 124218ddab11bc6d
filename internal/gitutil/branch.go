package gitutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/forgeops/autopr/internal/apperr"
)

const (
	// branchPrefix namespaces every generated branch.
	branchPrefix = "auto"

	maxSlugLength   = 40
	maxBranchLength = 250
	maxNameAttempts = 8
)

// ExistsFunc probes the remote for a branch name. It is injected so the
// naming utility never talks to GitHub directly.
type ExistsFunc func(ctx context.Context, name string) (bool, error)

// GenerateUniqueBranchName derives a slug from free text, appends a
// random suffix and re-probes until the name is collision-free. The
// attempt count is bounded; exhaustion surfaces as a classified error
// rather than a silently truncated or reused name.
func GenerateUniqueBranchName(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	slug := SanitizeBranchName(base)

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		suffix, err := randomSuffix()
		if err != nil {
			return "", fmt.Errorf("failed to generate branch suffix: %w", err)
		}

		candidate := fmt.Sprintf("%s/%s-%s", branchPrefix, slug, suffix)
		if err := ValidateBranchName(candidate); err != nil {
			return "", fmt.Errorf("generated branch name is invalid: %w", err)
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("branch existence probe failed: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", apperr.Newf(apperr.CodeNameExhausted,
		"could not find a free branch name for %q after %d attempts", slug, maxNameAttempts)
}

// SanitizeBranchName turns free text into a branch slug: lower-case,
// runs of non-alphanumeric characters collapsed to a single hyphen,
// bounded length. An empty result falls back to "change".
func SanitizeBranchName(name string) string {
	var b strings.Builder
	lastHyphen := true // swallow leading separators

	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "change"
	}
	return slug
}

// ValidateBranchName enforces git ref-name legality. The returned error
// names the violated rule.
func ValidateBranchName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("branch name cannot be empty")
	case len(name) > maxBranchLength:
		return fmt.Errorf("branch name exceeds %d characters", maxBranchLength)
	case name == "." || name == "..":
		return fmt.Errorf("branch name cannot be %q", name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("branch name cannot start or end with a slash")
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, "."):
		return fmt.Errorf("branch name cannot start or end with a dot")
	case strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-"):
		return fmt.Errorf("branch name cannot start or end with a dash")
	case strings.Contains(name, ".."):
		return fmt.Errorf("branch name cannot contain consecutive dots")
	case strings.Contains(name, "//"):
		return fmt.Errorf("branch name cannot contain consecutive slashes")
	case strings.Contains(name, "@{"):
		return fmt.Errorf("branch name cannot contain @{")
	case strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("branch name cannot end with .lock")
	}

	for _, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("branch name contains control characters")
		}
		if strings.ContainsRune(" ~^:?*[\\", r) {
			return fmt.Errorf("branch name contains invalid character %q", r)
		}
	}

	return nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
