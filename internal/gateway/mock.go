package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is a test double for Gateway. Each method records its
// call and delegates to the matching Func field when set, otherwise a
// benign default is returned.
type MockGateway struct {
	mu sync.Mutex

	CreateBranchFunc         func(ctx context.Context, branch, base string) error
	BranchExistsFunc         func(ctx context.Context, branch string) (bool, error)
	CommitFilesFunc          func(ctx context.Context, branch, message string, files []CommitFile) (*CommitResult, error)
	CreatePullRequestFunc    func(ctx context.Context, spec PullRequestSpec) (*PullRequest, error)
	UpdateFileFunc           func(ctx context.Context, path, content, message, branch string) error
	DeleteFileFunc           func(ctx context.Context, path, message, branch string) error
	GetFileContentFunc       func(ctx context.Context, path, ref string) (string, error)
	ListFilesFunc            func(ctx context.Context, ref string) ([]string, error)
	GetRepositorySummaryFunc func(ctx context.Context) (*RepositorySummary, error)

	CreateBranchCalls      []string
	BranchExistsCalls      []string
	CommitFilesCalls       []CommitCall
	CreatePullRequestCalls []PullRequestSpec
	UpdateFileCalls        []string
	DeleteFileCalls        []string
	GetFileContentCalls    []string
	ListFilesCalls         []string
	SummaryCalls           int
}

var _ Gateway = (*MockGateway)(nil)

// CommitCall records one CommitFiles invocation.
type CommitCall struct {
	Branch  string
	Message string
	Files   []CommitFile
}

// Calls returns the total number of recorded gateway calls.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreateBranchCalls) + len(m.BranchExistsCalls) + len(m.CommitFilesCalls) +
		len(m.CreatePullRequestCalls) + len(m.UpdateFileCalls) + len(m.DeleteFileCalls) +
		len(m.GetFileContentCalls) + len(m.ListFilesCalls) + m.SummaryCalls
}

func (m *MockGateway) CreateBranch(ctx context.Context, branch, base string) error {
	m.mu.Lock()
	m.CreateBranchCalls = append(m.CreateBranchCalls, branch)
	m.mu.Unlock()
	if m.CreateBranchFunc != nil {
		return m.CreateBranchFunc(ctx, branch, base)
	}
	return nil
}

func (m *MockGateway) BranchExists(ctx context.Context, branch string) (bool, error) {
	m.mu.Lock()
	m.BranchExistsCalls = append(m.BranchExistsCalls, branch)
	m.mu.Unlock()
	if m.BranchExistsFunc != nil {
		return m.BranchExistsFunc(ctx, branch)
	}
	return false, nil
}

func (m *MockGateway) CommitFiles(ctx context.Context, branch, message string, files []CommitFile) (*CommitResult, error) {
	m.mu.Lock()
	m.CommitFilesCalls = append(m.CommitFilesCalls, CommitCall{Branch: branch, Message: message, Files: files})
	m.mu.Unlock()
	if m.CommitFilesFunc != nil {
		return m.CommitFilesFunc(ctx, branch, message, files)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return &CommitResult{SHA: "0000000000000000000000000000000000000000", Branch: branch, Files: paths}, nil
}

func (m *MockGateway) CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	m.mu.Lock()
	m.CreatePullRequestCalls = append(m.CreatePullRequestCalls, spec)
	m.mu.Unlock()
	if m.CreatePullRequestFunc != nil {
		return m.CreatePullRequestFunc(ctx, spec)
	}
	return &PullRequest{Number: 1, URL: "https://github.com/owner/repo/pull/1"}, nil
}

func (m *MockGateway) UpdateFile(ctx context.Context, path, content, message, branch string) error {
	m.mu.Lock()
	m.UpdateFileCalls = append(m.UpdateFileCalls, path)
	m.mu.Unlock()
	if m.UpdateFileFunc != nil {
		return m.UpdateFileFunc(ctx, path, content, message, branch)
	}
	return nil
}

func (m *MockGateway) DeleteFile(ctx context.Context, path, message, branch string) error {
	m.mu.Lock()
	m.DeleteFileCalls = append(m.DeleteFileCalls, path)
	m.mu.Unlock()
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, path, message, branch)
	}
	return nil
}

func (m *MockGateway) GetFileContent(ctx context.Context, path, ref string) (string, error) {
	m.mu.Lock()
	m.GetFileContentCalls = append(m.GetFileContentCalls, path)
	m.mu.Unlock()
	if m.GetFileContentFunc != nil {
		return m.GetFileContentFunc(ctx, path, ref)
	}
	return fmt.Sprintf("// contents of %s\n", path), nil
}

func (m *MockGateway) ListFiles(ctx context.Context, ref string) ([]string, error) {
	m.mu.Lock()
	m.ListFilesCalls = append(m.ListFilesCalls, ref)
	m.mu.Unlock()
	if m.ListFilesFunc != nil {
		return m.ListFilesFunc(ctx, ref)
	}
	return []string{"README.md"}, nil
}

func (m *MockGateway) GetRepositorySummary(ctx context.Context) (*RepositorySummary, error) {
	m.mu.Lock()
	m.SummaryCalls++
	m.mu.Unlock()
	if m.GetRepositorySummaryFunc != nil {
		return m.GetRepositorySummaryFunc(ctx)
	}
	return &RepositorySummary{
		FullName:      "owner/repo",
		DefaultBranch: "main",
		Files:         []string{"README.md"},
		Languages:     map[string]int{"Go": 1000},
	}, nil
}
