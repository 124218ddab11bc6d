package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/forgeops/autopr/internal/apperr"
	"github.com/forgeops/autopr/internal/gateway"
	"github.com/forgeops/autopr/internal/generator"
)

type stubGenerator struct {
	result *generator.Result
	err    error
	calls  int
}

func (s *stubGenerator) GenerateChanges(ctx context.Context, req *generator.Request) (*generator.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubGenerator) Name() string { return "stub" }

func singleFileResult(path string) *generator.Result {
	return &generator.Result{
		Summary: "Add a greeting script",
		Files: []generator.ProposedFile{
			{Path: path, Content: "print('hi')\n", Summary: "new script"},
		},
	}
}

func newTestOrchestrator(t *testing.T, mock *gateway.MockGateway, gen generator.Generator) *Orchestrator {
	t.Helper()
	pool := NewPool(PoolConfig{Workers: 2, QueueSize: 8})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})

	factory := func(repo gateway.Repo) (gateway.Gateway, error) { return mock, nil }
	return New(factory, gen, pool)
}

func TestExecuteHappyPath(t *testing.T) {
	mock := &gateway.MockGateway{}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("scripts/hello.py")})

	req, err := o.Submit("example/demo", "add a greeting script", Options{})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	run, err := o.Execute(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if run.Status != RunCompleted {
		t.Errorf("run status = %s, want completed", run.Status)
	}
	if run.Progress != 100 {
		t.Errorf("progress = %d, want 100", run.Progress)
	}
	if run.PRURL == "" {
		t.Error("run has no PR URL")
	}
	for _, s := range run.Steps {
		if s.Status != StepCompleted {
			t.Errorf("step %s status = %s, want completed", s.Name, s.Status)
		}
	}

	stored, _ := o.Requests().Get(req.ID)
	if stored.Status != RequestCompleted {
		t.Errorf("request status = %s, want completed", stored.Status)
	}
	if stored.PRURL == "" || stored.PRURL != run.PRURL {
		t.Errorf("request prUrl = %q, want the run's %q", stored.PRURL, run.PRURL)
	}
	if !strings.HasPrefix(run.PRTitle, "Automated code update:") {
		t.Errorf("synthesized PR title = %q", run.PRTitle)
	}

	if len(mock.CreateBranchCalls) != 1 {
		t.Fatalf("CreateBranch calls = %d, want 1", len(mock.CreateBranchCalls))
	}
	branch := mock.CreateBranchCalls[0]
	if !strings.HasPrefix(branch, "auto/") {
		t.Errorf("generated branch %q lacks auto/ prefix", branch)
	}
	if len(mock.CommitFilesCalls) != 1 {
		t.Fatalf("CommitFiles calls = %d, want 1", len(mock.CommitFilesCalls))
	}
	commit := mock.CommitFilesCalls[0]
	if len(commit.Files) != 1 || commit.Files[0].Path != "scripts/hello.py" {
		t.Errorf("committed files = %+v", commit.Files)
	}
	if len(mock.CreatePullRequestCalls) != 1 {
		t.Fatalf("CreatePullRequest calls = %d, want 1", len(mock.CreatePullRequestCalls))
	}
	if got := mock.CreatePullRequestCalls[0].Head; got != branch {
		t.Errorf("PR head = %q, want %q", got, branch)
	}
}

func TestExecuteModifiesExistingFile(t *testing.T) {
	mock := &gateway.MockGateway{
		GetRepositorySummaryFunc: func(ctx context.Context) (*gateway.RepositorySummary, error) {
			return &gateway.RepositorySummary{
				FullName:      "example/demo",
				DefaultBranch: "main",
				Files:         []string{"README.md"},
			}, nil
		},
		GetFileContentFunc: func(ctx context.Context, path, ref string) (string, error) {
			return "old readme\n", nil
		},
	}
	gen := &stubGenerator{result: &generator.Result{
		Summary: "Refresh the readme",
		Files:   []generator.ProposedFile{{Path: "README.md", Content: "new readme\n"}},
	}}
	o := newTestOrchestrator(t, mock, gen)

	req, _ := o.Submit("example/demo", "refresh the readme", Options{})
	if _, err := o.Execute(context.Background(), req.ID); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if len(mock.GetFileContentCalls) != 1 || mock.GetFileContentCalls[0] != "README.md" {
		t.Errorf("GetFileContent calls = %v, want the existing file fetched once", mock.GetFileContentCalls)
	}
	changes := o.Changes().Get(req.ID)
	if len(changes) != 1 || changes[0].Op != "modify" {
		t.Fatalf("changes = %+v, want one modify", changes)
	}
	if changes[0].Original() != "old readme\n" {
		t.Errorf("original side = %q", changes[0].Original())
	}
}

func TestExecuteFixedBranchCollision(t *testing.T) {
	mock := &gateway.MockGateway{
		BranchExistsFunc: func(ctx context.Context, branch string) (bool, error) {
			return true, nil
		},
	}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("a.txt")})

	req, err := o.Submit("example/demo", "do something", Options{BranchName: "feature/fixed"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	run, err := o.Execute(context.Background(), req.ID)
	if apperr.CodeOf(err) != apperr.CodeNameCollision {
		t.Fatalf("error code = %s, want NAME_COLLISION", apperr.CodeOf(err))
	}

	// A caller-fixed name is never regenerated: one probe, no creation.
	if len(mock.BranchExistsCalls) != 1 {
		t.Errorf("BranchExists calls = %v, want exactly one probe", mock.BranchExistsCalls)
	}
	if len(mock.CreateBranchCalls) != 0 {
		t.Errorf("CreateBranch was called despite the collision")
	}
	if run.Status != RunFailed {
		t.Errorf("run status = %s, want failed (no remote mutation happened)", run.Status)
	}
	if s := run.step(StepCreateBranch); s == nil || s.Status != StepFailed {
		t.Errorf("create_branch step not marked failed")
	}
}

func TestExecuteGeneratedNameRetriesOnCollision(t *testing.T) {
	probes := 0
	mock := &gateway.MockGateway{
		BranchExistsFunc: func(ctx context.Context, branch string) (bool, error) {
			probes++
			return probes <= 2, nil
		},
	}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("a.txt")})

	req, _ := o.Submit("example/demo", "do something", Options{})
	if _, err := o.Execute(context.Background(), req.ID); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if probes != 3 {
		t.Errorf("probes = %d, want 3 (two collisions then a free name)", probes)
	}
	if len(mock.CreateBranchCalls) != 1 {
		t.Errorf("CreateBranch calls = %d, want 1", len(mock.CreateBranchCalls))
	}
}

func TestExecuteInvalidPathStopsBeforeBranch(t *testing.T) {
	mock := &gateway.MockGateway{}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("../escape.txt")})

	req, _ := o.Submit("example/demo", "do something", Options{})
	run, err := o.Execute(context.Background(), req.ID)

	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("error code = %s, want VALIDATION_ERROR", apperr.CodeOf(err))
	}
	if len(mock.CreateBranchCalls) != 0 || len(mock.CommitFilesCalls) != 0 || len(mock.CreatePullRequestCalls) != 0 {
		t.Error("remote mutation attempted for an invalid change-set")
	}
	if run.Status != RunFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}
}

func TestExecutePartialCommit(t *testing.T) {
	mock := &gateway.MockGateway{
		CommitFilesFunc: func(ctx context.Context, branch, message string, files []gateway.CommitFile) (*gateway.CommitResult, error) {
			return nil, apperr.PartialCommit([]string{"a.txt"}, context.DeadlineExceeded)
		},
	}
	gen := &stubGenerator{result: &generator.Result{
		Summary: "Two files",
		Files: []generator.ProposedFile{
			{Path: "a.txt", Content: "A\n"},
			{Path: "b.txt", Content: "B\n"},
		},
	}}
	o := newTestOrchestrator(t, mock, gen)

	req, _ := o.Submit("example/demo", "two files", Options{})
	run, err := o.Execute(context.Background(), req.ID)

	if apperr.CodeOf(err) != apperr.CodePartialCommit {
		t.Fatalf("error code = %s, want PARTIAL_COMMIT", apperr.CodeOf(err))
	}
	committed, _ := apperr.AsError(err).Details["committed_files"].([]string)
	if len(committed) != 1 || committed[0] != "a.txt" {
		t.Errorf("committed_files = %v, want the pushed paths", committed)
	}

	// The branch exists remotely, so this is a partial success.
	if run.Status != RunPartial {
		t.Errorf("run status = %s, want partial_success", run.Status)
	}
	if len(mock.CreatePullRequestCalls) != 0 {
		t.Error("PR created despite the failed commit")
	}
}

func TestExecuteGenerationFailure(t *testing.T) {
	mock := &gateway.MockGateway{}
	gen := &stubGenerator{err: apperr.New(apperr.CodeGeneration, "model returned nothing")}
	o := newTestOrchestrator(t, mock, gen)

	req, _ := o.Submit("example/demo", "do something", Options{})
	run, err := o.Execute(context.Background(), req.ID)

	if apperr.CodeOf(err) != apperr.CodeGeneration {
		t.Fatalf("error code = %s, want GENERATION_ERROR", apperr.CodeOf(err))
	}
	if run.Status != RunFailed {
		t.Errorf("run status = %s, want failed", run.Status)
	}
	if s := run.step(StepAnalyzeRepository); s.Status != StepCompleted {
		t.Errorf("analyze step = %s, want completed before the failure", s.Status)
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	mock := &gateway.MockGateway{}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("a.txt")})

	tests := []struct {
		name    string
		locator string
		request string
		opts    Options
	}{
		{"bad locator", "not-a-repo", "do something", Options{}},
		{"empty request", "example/demo", "   ", Options{}},
		{"bad branch name", "example/demo", "do something", Options{BranchName: "bad..name"}},
	}
	for _, tt := range tests {
		if _, err := o.Submit(tt.locator, tt.request, tt.opts); apperr.CodeOf(err) != apperr.CodeValidation {
			t.Errorf("%s: error code = %s, want VALIDATION_ERROR", tt.name, apperr.CodeOf(err))
		}
	}

	if mock.Calls() != 0 {
		t.Errorf("gateway contacted during boundary validation (%d calls)", mock.Calls())
	}
}

func TestExecuteAsyncReportsProgress(t *testing.T) {
	mock := &gateway.MockGateway{}
	o := newTestOrchestrator(t, mock, &stubGenerator{result: singleFileResult("a.txt")})

	req, _ := o.Submit("example/demo", "do something", Options{})
	task, err := o.ExecuteAsync(req.ID)
	if err != nil {
		t.Fatalf("ExecuteAsync error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, ok := o.Tasks().Get(task.ID)
		if !ok {
			t.Fatal("task disappeared")
		}
		if got.Status == TaskCompleted {
			if got.Progress != 100 {
				t.Errorf("progress = %d, want 100", got.Progress)
			}
			if got.Result["prUrl"] == "" {
				t.Error("task result has no PR URL")
			}
			return
		}
		if got.Status == TaskFailed {
			t.Fatalf("task failed: %s", got.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("task still %s after deadline", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAnalyzeRepository(t *testing.T) {
	mock := &gateway.MockGateway{}
	o := newTestOrchestrator(t, mock, &stubGenerator{})

	summary, err := o.AnalyzeRepository(context.Background(), "example/demo")
	if err != nil {
		t.Fatalf("AnalyzeRepository error: %v", err)
	}
	if summary.FullName != "owner/repo" {
		t.Errorf("summary = %+v", summary)
	}

	if _, err := o.AnalyzeRepository(context.Background(), "bogus"); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("bad locator error code = %s, want VALIDATION_ERROR", apperr.CodeOf(err))
	}
}

func TestExecuteUnknownRequest(t *testing.T) {
	o := newTestOrchestrator(t, &gateway.MockGateway{}, &stubGenerator{})
	if _, err := o.Execute(context.Background(), "missing"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("error code = %s, want NOT_FOUND", apperr.CodeOf(err))
	}
}
