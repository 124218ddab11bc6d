// Package gateway is the sole authenticated boundary to the remote
// version-control service. Every remote mutation the orchestrator
// performs goes through the Gateway interface; retry, backoff and
// error classification live here and nowhere else.
package gateway

import (
	"context"
	"regexp"
	"strings"

	"github.com/forgeops/autopr/internal/apperr"
)

// Repo locates one repository as host/owner/name.
type Repo struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns the owner/name pair.
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repo) String() string {
	return r.Host + "/" + r.Owner + "/" + r.Name
}

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ParseRepo parses a repository locator. Accepted shapes:
// "owner/name" (host defaults to github.com), "host/owner/name", and
// https:// URLs of either. Anything else is a validation error raised
// before any remote call.
func ParseRepo(locator string) (Repo, error) {
	s := strings.TrimSpace(locator)
	if s == "" {
		return Repo{}, apperr.New(apperr.CodeValidation, "repository locator is required")
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@")
	s = strings.ReplaceAll(s, ":", "/")
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	var repo Repo
	switch len(parts) {
	case 2:
		repo = Repo{Host: "github.com", Owner: parts[0], Name: parts[1]}
	case 3:
		repo = Repo{Host: parts[0], Owner: parts[1], Name: parts[2]}
	default:
		return Repo{}, apperr.Newf(apperr.CodeValidation,
			"repository locator %q does not match the host/owner/name shape", locator)
	}

	if repo.Host == "" || !repoNamePattern.MatchString(repo.Owner) || !repoNamePattern.MatchString(repo.Name) {
		return Repo{}, apperr.Newf(apperr.CodeValidation,
			"repository locator %q does not match the host/owner/name shape", locator)
	}
	return repo, nil
}

// CommitFile is one entry of the file map submitted as a single commit.
type CommitFile struct {
	Path    string
	Content string
	Delete  bool
}

// CommitResult describes the commit that landed on the branch.
type CommitResult struct {
	SHA    string
	Branch string
	Files  []string
}

// PullRequestSpec is the input to CreatePullRequest.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// PullRequest is the created (or already existing) pull request.
type PullRequest struct {
	Number int
	URL    string
}

// RepositorySummary is the analyzed repository context handed to the
// change generator and returned by the analysis endpoint.
type RepositorySummary struct {
	FullName      string         `json:"fullName"`
	Description   string         `json:"description,omitempty"`
	DefaultBranch string         `json:"defaultBranch"`
	Private       bool           `json:"private"`
	Readme        string         `json:"readme,omitempty"`
	Files         []string       `json:"files,omitempty"`
	Languages     map[string]int `json:"languages,omitempty"`
	Frameworks    []string       `json:"frameworks,omitempty"`
	Stars         int            `json:"stars"`
	OpenIssues    int            `json:"openIssues"`
}

// HasFile reports whether the analyzed tree contains path.
func (s *RepositorySummary) HasFile(path string) bool {
	for _, f := range s.Files {
		if f == path {
			return true
		}
	}
	return false
}

// Gateway is the remote VCS boundary. Implementations own retry,
// backoff and rate-limit handling; callers see classified errors only.
type Gateway interface {
	// CreateBranch creates branch from base. Base "" means the
	// repository default branch.
	CreateBranch(ctx context.Context, branch, base string) error

	// BranchExists probes for a branch without side effects.
	BranchExists(ctx context.Context, branch string) (bool, error)

	// CommitFiles lands the whole file map as one commit on branch.
	// On a mid-sequence failure the returned error is a
	// PARTIAL_COMMIT carrying exactly the paths already pushed.
	CommitFiles(ctx context.Context, branch, message string, files []CommitFile) (*CommitResult, error)

	// CreatePullRequest opens a PR and returns it. If an identical
	// head/base PR already exists it is returned instead.
	CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error)

	UpdateFile(ctx context.Context, path, content, message, branch string) error
	DeleteFile(ctx context.Context, path, message, branch string) error
	GetFileContent(ctx context.Context, path, ref string) (string, error)
	ListFiles(ctx context.Context, ref string) ([]string, error)
	GetRepositorySummary(ctx context.Context) (*RepositorySummary, error)
}

// Factory builds a Gateway bound to one repository. The orchestrator
// uses it so each workflow run talks to its own target repo while the
// underlying credential/client is shared.
type Factory func(repo Repo) (Gateway, error)
