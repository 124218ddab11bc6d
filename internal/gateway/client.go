package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/forgeops/autopr/internal/apperr"
)

const (
	readmeTruncateAt = 4000
	maxSummaryFiles  = 500
)

// Client implements Gateway on top of the GitHub REST API. One Client
// is bound to one repository; NewClientFactory shares the credential
// across repositories.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
	retry Policy
}

var _ Gateway = (*Client)(nil)

// NewClient builds a Gateway for one repository.
func NewClient(gh *github.Client, repo Repo, retry Policy) *Client {
	return &Client{gh: gh, owner: repo.Owner, repo: repo.Name, retry: retry}
}

// NewClientFactory returns a Factory that authenticates each repository
// with the given credentials.
func NewClientFactory(creds Credentials, retry Policy) Factory {
	return func(repo Repo) (Gateway, error) {
		gh, err := NewGitHubClient(creds, repo)
		if err != nil {
			return nil, err
		}
		return NewClient(gh, repo, retry), nil
	}
}

// CreateBranch creates branch from base; base "" means the repository
// default branch. A branch that already exists is a name collision.
func (c *Client) CreateBranch(ctx context.Context, branch, base string) error {
	baseSHA, err := c.resolveBaseSHA(ctx, base)
	if err != nil {
		return err
	}

	err = c.retry.Do(ctx, "create branch "+branch, func() error {
		ref := &github.Reference{
			Ref:    github.String("refs/heads/" + branch),
			Object: &github.GitObject{SHA: github.String(baseSHA)},
		}
		_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, ref)
		if err != nil && isAlreadyExists(err) {
			return apperr.Newf(apperr.CodeNameCollision, "branch %q already exists", branch).
				WithDetail("branch", branch)
		}
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("[Gateway] created branch %s from %s in %s/%s", branch, baseSHA[:7], c.owner, c.repo)
	return nil
}

// BranchExists probes for a branch without side effects.
func (c *Client) BranchExists(ctx context.Context, branch string) (bool, error) {
	var exists bool
	err := c.retry.Do(ctx, "check branch "+branch, func() error {
		_, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+branch)
		exists = err == nil
		return err
	})
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// CommitFiles lands the whole file map as one commit: blobs, then one
// tree, one commit object, and a ref update. If the sequence fails
// after any blob reached the remote the error is a PARTIAL_COMMIT
// listing those paths; nothing is rolled back.
func (c *Client) CommitFiles(ctx context.Context, branch, message string, files []CommitFile) (*CommitResult, error) {
	if len(files) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "commit requires at least one file")
	}

	headSHA, err := c.getRefSHA(ctx, "refs/heads/"+branch)
	if err != nil {
		return nil, err
	}

	var baseCommit *github.Commit
	err = c.retry.Do(ctx, "get base commit", func() error {
		var err error
		baseCommit, _, err = c.gh.Git.GetCommit(ctx, c.owner, c.repo, headSHA)
		return err
	})
	if err != nil {
		return nil, err
	}

	var pushed []string
	entries := make([]*github.TreeEntry, 0, len(files))
	for _, f := range files {
		if f.Delete {
			// Entry with neither content nor SHA removes the path.
			entries = append(entries, &github.TreeEntry{
				Path: github.String(f.Path),
				Mode: github.String("100644"),
			})
			continue
		}

		content := f.Content
		var blob *github.Blob
		err = c.retry.Do(ctx, "create blob "+f.Path, func() error {
			var err error
			blob, _, err = c.gh.Git.CreateBlob(ctx, c.owner, c.repo, &github.Blob{
				Content:  github.String(content),
				Encoding: github.String("utf-8"),
			})
			return err
		})
		if err != nil {
			return nil, c.partial(pushed, err)
		}
		pushed = append(pushed, f.Path)

		entries = append(entries, &github.TreeEntry{
			Path: github.String(f.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	var tree *github.Tree
	err = c.retry.Do(ctx, "create tree", func() error {
		var err error
		tree, _, err = c.gh.Git.CreateTree(ctx, c.owner, c.repo, baseCommit.GetTree().GetSHA(), entries)
		return err
	})
	if err != nil {
		return nil, c.partial(pushed, err)
	}

	var commit *github.Commit
	err = c.retry.Do(ctx, "create commit", func() error {
		var err error
		commit, _, err = c.gh.Git.CreateCommit(ctx, c.owner, c.repo, &github.Commit{
			Message: github.String(message),
			Tree:    tree,
			Parents: []*github.Commit{{SHA: github.String(headSHA)}},
		}, nil)
		return err
	})
	if err != nil {
		return nil, c.partial(pushed, err)
	}

	err = c.retry.Do(ctx, "update ref", func() error {
		_, _, err := c.gh.Git.UpdateRef(ctx, c.owner, c.repo, &github.Reference{
			Ref:    github.String("refs/heads/" + branch),
			Object: &github.GitObject{SHA: commit.SHA},
		}, false)
		return err
	})
	if err != nil {
		return nil, c.partial(pushed, err)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	log.Printf("[Gateway] committed %d file(s) to %s as %s", len(files), branch, commit.GetSHA()[:7])

	return &CommitResult{SHA: commit.GetSHA(), Branch: branch, Files: paths}, nil
}

func (c *Client) partial(pushed []string, cause error) error {
	if len(pushed) == 0 {
		return Classify(cause)
	}
	return apperr.PartialCommit(pushed, cause)
}

// CreatePullRequest opens a PR. If GitHub rejects it because an
// identical head/base PR is already open, that PR is returned instead.
func (c *Client) CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	var pr *github.PullRequest
	err := c.retry.Do(ctx, "create pull request", func() error {
		var err error
		pr, _, err = c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
			Title: github.String(spec.Title),
			Body:  github.String(spec.Body),
			Head:  github.String(spec.Head),
			Base:  github.String(spec.Base),
		})
		return err
	})
	if err != nil {
		if existing, ok := c.findOpenPull(ctx, spec.Head, spec.Base); ok {
			log.Printf("[Gateway] pull request for %s -> %s already open: %s", spec.Head, spec.Base, existing.URL)
			return existing, nil
		}
		return nil, err
	}

	log.Printf("[Gateway] opened pull request #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

func (c *Client) findOpenPull(ctx context.Context, head, base string) (*PullRequest, bool) {
	pulls, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  c.owner + ":" + head,
		Base:  base,
	})
	if err != nil || len(pulls) == 0 {
		return nil, false
	}
	return &PullRequest{Number: pulls[0].GetNumber(), URL: pulls[0].GetHTMLURL()}, true
}

// UpdateFile writes one file through the contents API.
func (c *Client) UpdateFile(ctx context.Context, path, content, message, branch string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		Branch:  github.String(branch),
	}

	sha, err := c.fileSHA(ctx, path, branch)
	if err != nil && apperr.CodeOf(err) != apperr.CodeNotFound {
		return err
	}
	if sha != "" {
		opts.SHA = github.String(sha)
	}

	return c.retry.Do(ctx, "update file "+path, func() error {
		_, _, err := c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
		return err
	})
}

// DeleteFile removes one file through the contents API.
func (c *Client) DeleteFile(ctx context.Context, path, message, branch string) error {
	sha, err := c.fileSHA(ctx, path, branch)
	if err != nil {
		return err
	}

	return c.retry.Do(ctx, "delete file "+path, func() error {
		_, _, err := c.gh.Repositories.DeleteFile(ctx, c.owner, c.repo, path, &github.RepositoryContentFileOptions{
			Message: github.String(message),
			SHA:     github.String(sha),
			Branch:  github.String(branch),
		})
		return err
	})
}

func (c *Client) fileSHA(ctx context.Context, path, ref string) (string, error) {
	var sha string
	err := c.retry.Do(ctx, "stat file "+path, func() error {
		file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
			&github.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return err
		}
		if file == nil {
			return apperr.Newf(apperr.CodeValidation, "%s is a directory, not a file", path)
		}
		sha = file.GetSHA()
		return nil
	})
	return sha, err
}

// GetFileContent returns the decoded content of one file at ref.
func (c *Client) GetFileContent(ctx context.Context, path, ref string) (string, error) {
	var content string
	err := c.retry.Do(ctx, "get file "+path, func() error {
		file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
			&github.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return err
		}
		if file == nil {
			return apperr.Newf(apperr.CodeValidation, "%s is a directory, not a file", path)
		}
		content, err = file.GetContent()
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	})
	return content, err
}

// ListFiles returns every blob path of the tree at ref. Ref "" means
// the repository default branch.
func (c *Client) ListFiles(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		repo, err := c.getRepo(ctx)
		if err != nil {
			return nil, err
		}
		ref = repo.GetDefaultBranch()
	}

	sha, err := c.getRefSHA(ctx, "refs/heads/"+ref)
	if err != nil {
		return nil, err
	}

	var commit *github.Commit
	err = c.retry.Do(ctx, "get commit", func() error {
		var err error
		commit, _, err = c.gh.Git.GetCommit(ctx, c.owner, c.repo, sha)
		return err
	})
	if err != nil {
		return nil, err
	}

	var tree *github.Tree
	err = c.retry.Do(ctx, "get tree", func() error {
		var err error
		tree, _, err = c.gh.Git.GetTree(ctx, c.owner, c.repo, commit.GetTree().GetSHA(), true)
		return err
	})
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			files = append(files, entry.GetPath())
		}
	}
	return files, nil
}

// GetRepositorySummary analyzes the repository: metadata, readme,
// file inventory, languages and detected frameworks.
func (c *Client) GetRepositorySummary(ctx context.Context) (*RepositorySummary, error) {
	repo, err := c.getRepo(ctx)
	if err != nil {
		return nil, err
	}

	summary := &RepositorySummary{
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		Stars:         repo.GetStargazersCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
	}

	// Readme and languages are context enrichment; their absence is
	// not a failure.
	_ = c.retry.Do(ctx, "get readme", func() error {
		readme, _, err := c.gh.Repositories.GetReadme(ctx, c.owner, c.repo, nil)
		if err != nil {
			if apperr.CodeOf(Classify(err)) == apperr.CodeNotFound {
				return nil
			}
			return err
		}
		content, err := readme.GetContent()
		if err != nil {
			return nil
		}
		if len(content) > readmeTruncateAt {
			content = content[:readmeTruncateAt]
		}
		summary.Readme = content
		return nil
	})

	files, err := c.ListFiles(ctx, summary.DefaultBranch)
	if err != nil {
		return nil, err
	}
	if len(files) > maxSummaryFiles {
		files = files[:maxSummaryFiles]
	}
	summary.Files = files

	_ = c.retry.Do(ctx, "list languages", func() error {
		langs, _, err := c.gh.Repositories.ListLanguages(ctx, c.owner, c.repo)
		if err != nil {
			return err
		}
		summary.Languages = langs
		return nil
	})

	summary.Frameworks = detectFrameworks(summary.Files)

	log.Printf("[Gateway] analyzed %s: %d files, %d languages, frameworks %s",
		summary.FullName, len(summary.Files), len(summary.Languages), strings.Join(summary.Frameworks, ", "))
	return summary, nil
}

func (c *Client) getRepo(ctx context.Context) (*github.Repository, error) {
	var repo *github.Repository
	err := c.retry.Do(ctx, "get repository", func() error {
		var err error
		repo, _, err = c.gh.Repositories.Get(ctx, c.owner, c.repo)
		return err
	})
	return repo, err
}

func (c *Client) getRefSHA(ctx context.Context, ref string) (string, error) {
	var sha string
	err := c.retry.Do(ctx, "get ref "+ref, func() error {
		r, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, ref)
		if err != nil {
			return err
		}
		sha = r.GetObject().GetSHA()
		return nil
	})
	return sha, err
}

func (c *Client) resolveBaseSHA(ctx context.Context, base string) (string, error) {
	if base == "" {
		repo, err := c.getRepo(ctx)
		if err != nil {
			return "", err
		}
		base = repo.GetDefaultBranch()
	}

	sha, err := c.getRefSHA(ctx, "refs/heads/"+base)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return "", apperr.Newf(apperr.CodeNotFound, "base branch %q does not exist", base)
		}
		return "", err
	}
	return sha, nil
}
