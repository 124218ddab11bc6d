// Package workflow orchestrates the pull-request pipeline: repository
// analysis, change generation, validation, branch creation, commit and
// PR creation, with per-request state tracking and background
// execution.
package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgeops/autopr/internal/gateway"
)

// RequestStatus is the lifecycle state of a PR request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
)

// Options are the caller-supplied knobs of one PR request. Zero values
// mean "let the system decide": an empty BranchName is generated, an
// empty BaseBranch resolves to the repository default branch.
type Options struct {
	BranchName    string `json:"branchName,omitempty"`
	BaseBranch    string `json:"baseBranch,omitempty"`
	PRTitle       string `json:"prTitle,omitempty"`
	PRDescription string `json:"prDescription,omitempty"`

	// AutoMerge is recorded on the request but never acted on; merge
	// stays a human decision.
	AutoMerge bool `json:"autoMerge,omitempty"`
}

// PRRequest is one accepted pull-request creation request.
type PRRequest struct {
	ID          string        `json:"id"`
	Repository  gateway.Repo  `json:"repository"`
	UserRequest string        `json:"userRequest"`
	Options     Options       `json:"options"`
	Status      RequestStatus `json:"status"`
	PRURL       string        `json:"prUrl,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewPRRequest builds a pending request with a fresh ID.
func NewPRRequest(repo gateway.Repo, userRequest string, opts Options) *PRRequest {
	now := time.Now()
	return &PRRequest{
		ID:          uuid.NewString(),
		Repository:  repo,
		UserRequest: userRequest,
		Options:     opts,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
