package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Step names, in pipeline order.
const (
	StepAnalyzeRepository = "analyze_repository"
	StepGenerateChanges   = "generate_changes"
	StepValidateChanges   = "validate_changes"
	StepCreateBranch      = "create_branch"
	StepCommitChanges     = "commit_changes"
	StepCreatePullRequest = "create_pull_request"
)

var standardSteps = []string{
	StepAnalyzeRepository,
	StepGenerateChanges,
	StepValidateChanges,
	StepCreateBranch,
	StepCommitChanges,
	StepCreatePullRequest,
}

// StepStatus is the state of one pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// RunStatus is the overall state of one pipeline run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	// RunPartial means remote state was already mutated (branch or
	// commit landed) before a later step failed; nothing is rolled
	// back.
	RunPartial RunStatus = "partial_success"
	RunFailed  RunStatus = "failed"
)

// Step records the outcome of one pipeline step.
type Step struct {
	Name      string         `json:"name"`
	Status    StepStatus     `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// Run is the audit record of one pipeline execution. Every step is
// pre-created pending so pollers always see the full pipeline shape.
type Run struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	Status      RunStatus `json:"status"`
	Steps       []*Step   `json:"steps"`
	Progress    int       `json:"progress"`
	BranchName  string    `json:"branchName,omitempty"`
	PRTitle     string    `json:"prTitle,omitempty"`
	PRURL       string    `json:"prUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// NewStandardRun builds an in-progress run with all pipeline steps
// pending.
func NewStandardRun(requestID string) *Run {
	steps := make([]*Step, len(standardSteps))
	for i, name := range standardSteps {
		steps[i] = &Step{Name: name, Status: StepPending}
	}
	return &Run{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Status:    RunInProgress,
		Steps:     steps,
		StartedAt: time.Now(),
	}
}

func (r *Run) step(name string) *Step {
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (r *Run) completeStep(name string, result map[string]any) {
	if s := r.step(name); s != nil {
		s.Status = StepCompleted
		s.Result = result
		s.Timestamp = time.Now()
	}
	r.Progress = r.progress()
}

func (r *Run) failStep(name, message string) {
	if s := r.step(name); s != nil {
		s.Status = StepFailed
		s.Error = message
		s.Timestamp = time.Now()
	}
	r.Progress = r.progress()
}

func (r *Run) progress() int {
	done := 0
	for _, s := range r.Steps {
		if s.Status == StepCompleted {
			done++
		}
	}
	return done * 100 / len(r.Steps)
}

// finalize derives the terminal status. A failure after the branch was
// created means remote state is dirty, which is a partial success, not
// a clean failure.
func (r *Run) finalize(errMessage string) {
	r.CompletedAt = time.Now()
	r.Error = errMessage

	if errMessage == "" {
		r.Status = RunCompleted
		return
	}

	branchCreated := false
	if s := r.step(StepCreateBranch); s != nil {
		branchCreated = s.Status == StepCompleted
	}
	if branchCreated {
		r.Status = RunPartial
		return
	}
	r.Status = RunFailed
}

// clone returns a deep copy safe to hand to concurrent readers.
func (r *Run) clone() *Run {
	out := *r
	out.Steps = make([]*Step, len(r.Steps))
	for i, s := range r.Steps {
		step := *s
		if s.Result != nil {
			step.Result = make(map[string]any, len(s.Result))
			for k, v := range s.Result {
				step.Result[k] = v
			}
		}
		out.Steps[i] = &step
	}
	return &out
}
