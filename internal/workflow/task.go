package workflow

import (
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TaskKind names what a background task executes.
type TaskKind string

const (
	TaskPRCreation         TaskKind = "pr_creation"
	TaskRepositoryAnalysis TaskKind = "repository_analysis"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// BackgroundTask tracks one async job so callers can poll its state.
// A task is processing from acceptance until it finishes; StartedAt is
// recorded when a worker picks it up, CompletedAt when it reaches a
// terminal status.
type BackgroundTask struct {
	ID          string         `json:"id"`
	Kind        TaskKind       `json:"kind"`
	Status      TaskStatus     `json:"status"`
	RequestID   string         `json:"requestId,omitempty"`
	Progress    int            `json:"progressPercent"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   time.Time      `json:"startedAt,omitzero"`
	CompletedAt time.Time      `json:"completedAt,omitzero"`
}

// TaskStore is the in-memory registry of background tasks.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*BackgroundTask
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*BackgroundTask)}
}

// Create registers a processing task and returns its ID.
func (s *TaskStore) Create(kind TaskKind, requestID string) *BackgroundTask {
	id, err := gonanoid.New()
	if err != nil {
		// nanoid only fails when the system entropy source does.
		panic(err)
	}

	task := &BackgroundTask{
		ID:        "task-" + id,
		Kind:      kind,
		Status:    TaskProcessing,
		RequestID: requestID,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return snapshotTask(task)
}

// Get returns a copy of the task.
func (s *TaskStore) Get(id string) (*BackgroundTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return snapshotTask(task), true
}

// Start records that a worker picked the task up.
func (s *TaskStore) Start(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.StartedAt = time.Now()
	}
}

// SetProgress records progress and the currently running step.
func (s *TaskStore) SetProgress(id string, progress int, currentStep string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Progress = progress
		if task.Result == nil {
			task.Result = make(map[string]any)
		}
		task.Result["currentStep"] = currentStep
	}
}

// Complete marks the task done and stores its result payload.
func (s *TaskStore) Complete(id string, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Status = TaskCompleted
		task.Progress = 100
		task.Result = result
		task.CompletedAt = time.Now()
	}
}

// Fail marks the task failed with the error message.
func (s *TaskStore) Fail(id string, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Status = TaskFailed
		task.Error = errMessage
		task.CompletedAt = time.Now()
	}
}

func snapshotTask(t *BackgroundTask) *BackgroundTask {
	out := *t
	if t.Result != nil {
		out.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			out.Result[k] = v
		}
	}
	return &out
}
