package workflow

import (
	"sync"
	"time"

	"github.com/forgeops/autopr/internal/changeset"
)

// RequestStore is the in-memory registry of PR requests.
type RequestStore struct {
	mu       sync.RWMutex
	requests map[string]*PRRequest
}

func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[string]*PRRequest)}
}

func (s *RequestStore) Create(req *PRRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
}

// Get returns a copy of the request.
func (s *RequestStore) Get(id string) (*PRRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	out := *req
	return &out, true
}

// SetStatus moves the request to status, recording the error message
// for terminal failures.
func (s *RequestStore) SetStatus(id string, status RequestStatus, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[id]; ok {
		req.Status = status
		req.Error = errMessage
		req.UpdatedAt = time.Now()
	}
}

// SetPRURL records the pull request a completed request produced.
func (s *RequestStore) SetPRURL(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[id]; ok {
		req.PRURL = url
		req.UpdatedAt = time.Now()
	}
}

// RunStore is the in-memory registry of pipeline runs, indexed by run
// ID and by owning request.
type RunStore struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	byRequest map[string]string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs:      make(map[string]*Run),
		byRequest: make(map[string]string),
	}
}

// Create registers a fresh run for the request and returns its ID.
func (s *RunStore) Create(requestID string) string {
	run := NewStandardRun(requestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.byRequest[requestID] = run.ID
	return run.ID
}

// Get returns a deep copy of the run.
func (s *RunStore) Get(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	return run.clone(), true
}

// GetByRequest returns a deep copy of the request's run.
func (s *RunStore) GetByRequest(requestID string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, false
	}
	return s.runs[id].clone(), true
}

// CompleteStep marks the step done with its result payload.
func (s *RunStore) CompleteStep(runID, step string, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.completeStep(step, result)
	}
}

// FailStep marks the step failed.
func (s *RunStore) FailStep(runID, step, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.failStep(step, errMessage)
	}
}

// SetBranch records the branch the run settled on.
func (s *RunStore) SetBranch(runID, branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.BranchName = branch
	}
}

// SetPR records the pull request the run produced, including the
// title that was used (callers may have had it synthesized for them).
func (s *RunStore) SetPR(runID, title, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.PRTitle = title
		run.PRURL = url
	}
}

// Finalize derives and records the terminal run status.
func (s *RunStore) Finalize(runID, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.finalize(errMessage)
	}
}

// ChangeSetStore keeps each request's proposed change-set.
type ChangeSetStore struct {
	mu      sync.RWMutex
	changes map[string][]*changeset.Change
}

func NewChangeSetStore() *ChangeSetStore {
	return &ChangeSetStore{changes: make(map[string][]*changeset.Change)}
}

func (s *ChangeSetStore) Put(requestID string, changes []*changeset.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes[requestID] = changes
}

func (s *ChangeSetStore) Get(requestID string) []*changeset.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes[requestID]
}
