package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/forgeops/autopr/internal/apperr"
	"github.com/forgeops/autopr/internal/changeset"
	"github.com/forgeops/autopr/internal/gateway"
	"github.com/forgeops/autopr/internal/generator"
	"github.com/forgeops/autopr/internal/gitutil"
)

// Orchestrator drives the PR pipeline end to end and owns all
// in-memory state: requests, runs, change-sets and background tasks.
type Orchestrator struct {
	gateways  gateway.Factory
	generator generator.Generator
	validator *changeset.Validator
	pool      *Pool

	requests *RequestStore
	runs     *RunStore
	changes  *ChangeSetStore
	tasks    *TaskStore

	// claimed holds branch names reserved by in-flight runs so two
	// concurrent runs never settle on the same generated name.
	mu      sync.Mutex
	claimed map[string]bool
}

// New creates an orchestrator with fresh stores.
func New(gateways gateway.Factory, gen generator.Generator, pool *Pool) *Orchestrator {
	return &Orchestrator{
		gateways:  gateways,
		generator: gen,
		validator: changeset.NewValidator(),
		pool:      pool,
		requests:  NewRequestStore(),
		runs:      NewRunStore(),
		changes:   NewChangeSetStore(),
		tasks:     NewTaskStore(),
	}
}

func (o *Orchestrator) Requests() *RequestStore  { return o.requests }
func (o *Orchestrator) Runs() *RunStore          { return o.runs }
func (o *Orchestrator) Tasks() *TaskStore        { return o.tasks }
func (o *Orchestrator) Changes() *ChangeSetStore { return o.changes }

// Submit validates the request boundary and registers a pending
// request. No remote call happens here: a bad locator or branch name
// is rejected before GitHub is ever contacted.
func (o *Orchestrator) Submit(locator, userRequest string, opts Options) (*PRRequest, error) {
	repo, err := gateway.ParseRepo(locator)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(userRequest) == "" {
		return nil, apperr.New(apperr.CodeValidation, "change request text is required")
	}

	if opts.BranchName != "" {
		if err := gitutil.ValidateBranchName(opts.BranchName); err != nil {
			return nil, apperr.Wrap(apperr.CodeValidation,
				fmt.Sprintf("invalid branch name %q", opts.BranchName), err)
		}
	}

	req := NewPRRequest(repo, userRequest, opts)
	o.requests.Create(req)
	log.Printf("[Workflow] accepted request %s for %s", req.ID, repo.FullName())
	return req, nil
}

// Execute runs the pipeline for the request, blocking until it
// finishes. The returned run is the full audit record; err is the
// classified failure, if any.
func (o *Orchestrator) Execute(ctx context.Context, requestID string) (*Run, error) {
	return o.execute(ctx, requestID, nil)
}

// ExecuteAsync schedules the pipeline on the worker pool and returns
// the task to poll.
func (o *Orchestrator) ExecuteAsync(requestID string) (*BackgroundTask, error) {
	if _, ok := o.requests.Get(requestID); !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "request %s not found", requestID)
	}

	task := o.tasks.Create(TaskPRCreation, requestID)
	err := o.pool.Submit(func() {
		o.tasks.Start(task.ID)
		run, err := o.execute(context.Background(), requestID, func(progress int, step string) {
			o.tasks.SetProgress(task.ID, progress, step)
		})
		if err != nil {
			o.tasks.Fail(task.ID, err.Error())
			return
		}
		o.tasks.Complete(task.ID, map[string]any{
			"requestId": requestID,
			"runId":     run.ID,
			"prUrl":     run.PRURL,
		})
	})
	if err != nil {
		o.tasks.Fail(task.ID, err.Error())
		return nil, err
	}
	return task, nil
}

// AnalyzeRepository runs repository introspection on its own, outside
// any PR pipeline.
func (o *Orchestrator) AnalyzeRepository(ctx context.Context, locator string) (*gateway.RepositorySummary, error) {
	repo, err := gateway.ParseRepo(locator)
	if err != nil {
		return nil, err
	}
	gw, err := o.gateways(repo)
	if err != nil {
		return nil, err
	}
	return gw.GetRepositorySummary(ctx)
}

// AnalyzeAsync schedules repository analysis on the worker pool.
func (o *Orchestrator) AnalyzeAsync(locator string) (*BackgroundTask, error) {
	// Reject a bad locator before queueing.
	if _, err := gateway.ParseRepo(locator); err != nil {
		return nil, err
	}

	task := o.tasks.Create(TaskRepositoryAnalysis, "")
	err := o.pool.Submit(func() {
		o.tasks.Start(task.ID)
		summary, err := o.AnalyzeRepository(context.Background(), locator)
		if err != nil {
			o.tasks.Fail(task.ID, err.Error())
			return
		}
		o.tasks.Complete(task.ID, map[string]any{
			"fullName":      summary.FullName,
			"description":   summary.Description,
			"defaultBranch": summary.DefaultBranch,
			"languages":     summary.Languages,
			"frameworks":    summary.Frameworks,
			"fileCount":     len(summary.Files),
		})
	})
	if err != nil {
		o.tasks.Fail(task.ID, err.Error())
		return nil, err
	}
	return task, nil
}

type progressFunc func(progress int, step string)

func (o *Orchestrator) execute(ctx context.Context, requestID string, onProgress progressFunc) (*Run, error) {
	req, ok := o.requests.Get(requestID)
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "request %s not found", requestID)
	}

	runID := o.runs.Create(requestID)
	o.requests.SetStatus(requestID, RequestProcessing, "")
	log.Printf("[Workflow] run %s started for request %s", runID, requestID)

	err := o.runPipeline(ctx, req, runID, onProgress)
	if err != nil {
		o.runs.Finalize(runID, err.Error())
		o.requests.SetStatus(requestID, RequestFailed, err.Error())
		log.Printf("[Workflow] run %s failed: %v", runID, err)
	} else {
		o.runs.Finalize(runID, "")
		o.requests.SetStatus(requestID, RequestCompleted, "")
		log.Printf("[Workflow] run %s completed", runID)
	}

	run, _ := o.runs.Get(runID)
	if err == nil && run != nil {
		o.requests.SetPRURL(requestID, run.PRURL)
	}
	return run, err
}

func (o *Orchestrator) runPipeline(ctx context.Context, req *PRRequest, runID string, onProgress progressFunc) error {
	complete := func(step string, result map[string]any) {
		o.runs.CompleteStep(runID, step, result)
		if onProgress != nil {
			if run, ok := o.runs.Get(runID); ok {
				onProgress(run.Progress, step)
			}
		}
	}
	fail := func(step string, err error) error {
		o.runs.FailStep(runID, step, err.Error())
		return err
	}

	// analyze_repository
	gw, err := o.gateways(req.Repository)
	if err != nil {
		return fail(StepAnalyzeRepository, err)
	}
	summary, err := gw.GetRepositorySummary(ctx)
	if err != nil {
		return fail(StepAnalyzeRepository, err)
	}
	base := req.Options.BaseBranch
	if base == "" {
		base = summary.DefaultBranch
	}
	complete(StepAnalyzeRepository, map[string]any{
		"fullName":      summary.FullName,
		"defaultBranch": summary.DefaultBranch,
		"fileCount":     len(summary.Files),
	})

	// generate_changes
	genResult, err := o.generator.GenerateChanges(ctx, &generator.Request{
		RequestID:   req.ID,
		UserRequest: req.UserRequest,
		Summary:     summary,
	})
	if err != nil {
		return fail(StepGenerateChanges, err)
	}
	changes, err := o.buildChanges(ctx, gw, req, summary, base, genResult)
	if err != nil {
		return fail(StepGenerateChanges, err)
	}
	o.changes.Put(req.ID, changes)
	complete(StepGenerateChanges, map[string]any{
		"fileCount": len(changes),
		"summary":   genResult.Summary,
	})

	// validate_changes
	verdict := o.validator.Validate(changes)
	if !verdict.Valid() {
		return fail(StepValidateChanges, apperr.New(apperr.CodeValidation,
			"proposed changes failed validation").WithDetail("errors", verdict.Errors))
	}
	additions, deletions := diffStats(changes)
	complete(StepValidateChanges, map[string]any{
		"warnings":  verdict.Warnings,
		"additions": additions,
		"deletions": deletions,
	})

	// create_branch
	branch, err := o.resolveBranch(ctx, gw, req)
	if err != nil {
		return fail(StepCreateBranch, err)
	}
	o.claim(branch)
	defer o.release(branch)

	if err := gw.CreateBranch(ctx, branch, base); err != nil {
		return fail(StepCreateBranch, err)
	}
	o.runs.SetBranch(runID, branch)
	complete(StepCreateBranch, map[string]any{"branch": branch, "base": base})

	// commit_changes
	files := make([]gateway.CommitFile, len(changes))
	paths := make([]string, len(changes))
	for i, c := range changes {
		files[i] = gateway.CommitFile{
			Path:    c.Path,
			Content: c.Proposed(),
			Delete:  c.Op == changeset.OpDelete,
		}
		paths[i] = c.Path
	}
	message := gitutil.BuildCommitMessage(genResult.Summary, paths)
	commit, err := gw.CommitFiles(ctx, branch, message, files)
	if err != nil {
		return fail(StepCommitChanges, err)
	}
	complete(StepCommitChanges, map[string]any{
		"sha":       commit.SHA,
		"fileCount": len(commit.Files),
	})

	// create_pull_request
	title := req.Options.PRTitle
	if title == "" {
		title = "Automated code update: " + shorten(req.UserRequest, 60)
	}
	pr, err := gw.CreatePullRequest(ctx, gateway.PullRequestSpec{
		Title: title,
		Body:  buildPRBody(req, genResult, changes),
		Head:  branch,
		Base:  base,
	})
	if err != nil {
		return fail(StepCreatePullRequest, err)
	}
	o.runs.SetPR(runID, title, pr.URL)
	complete(StepCreatePullRequest, map[string]any{
		"prNumber": pr.Number,
		"prUrl":    pr.URL,
	})

	return nil
}

// buildChanges turns the generator's proposed files into a change-set,
// fetching originals for files that already exist so the validator and
// diff see both sides.
func (o *Orchestrator) buildChanges(ctx context.Context, gw gateway.Gateway, req *PRRequest,
	summary *gateway.RepositorySummary, base string, genResult *generator.Result) ([]*changeset.Change, error) {

	changes := make([]*changeset.Change, 0, len(genResult.Files))
	for _, f := range genResult.Files {
		if summary.HasFile(f.Path) {
			original, err := gw.GetFileContent(ctx, f.Path, base)
			if err != nil {
				return nil, err
			}
			changes = append(changes, changeset.NewModify(req.ID, f.Path, original, f.Content, f.Summary))
			continue
		}
		changes = append(changes, changeset.NewCreate(req.ID, f.Path, f.Content, f.Summary))
	}
	return changes, nil
}

// resolveBranch settles the branch the run will use. A caller-fixed
// name that is taken is a fatal collision; a generated name re-rolls
// until free.
func (o *Orchestrator) resolveBranch(ctx context.Context, gw gateway.Gateway, req *PRRequest) (string, error) {
	probe := func(ctx context.Context, name string) (bool, error) {
		if o.isClaimed(name) {
			return true, nil
		}
		return gw.BranchExists(ctx, name)
	}

	if fixed := req.Options.BranchName; fixed != "" {
		taken, err := probe(ctx, fixed)
		if err != nil {
			return "", err
		}
		if taken {
			return "", apperr.Newf(apperr.CodeNameCollision,
				"branch %q already exists", fixed).WithDetail("branch", fixed)
		}
		return fixed, nil
	}

	return gitutil.GenerateUniqueBranchName(ctx, req.UserRequest, probe)
}

func (o *Orchestrator) claim(branch string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.claimed == nil {
		o.claimed = make(map[string]bool)
	}
	o.claimed[branch] = true
}

func (o *Orchestrator) release(branch string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.claimed, branch)
}

func (o *Orchestrator) isClaimed(branch string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.claimed[branch]
}

func diffStats(changes []*changeset.Change) (additions, deletions int) {
	for _, c := range changes {
		d := gitutil.CalculateDiff(c.Original(), c.Proposed(), c.Path)
		additions += d.Additions
		deletions += d.Deletions
	}
	return additions, deletions
}

func buildPRBody(req *PRRequest, genResult *generator.Result, changes []*changeset.Change) string {
	var b strings.Builder

	b.WriteString("## Change request\n\n")
	b.WriteString(req.UserRequest)
	b.WriteString("\n")

	if genResult.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(genResult.Summary)
		b.WriteString("\n")
	}

	b.WriteString("\n## Files\n\n")
	for _, c := range changes {
		fmt.Fprintf(&b, "- `%s` (%s)\n", c.Path, c.Op)
	}

	if req.Options.PRDescription != "" {
		b.WriteString("\n")
		b.WriteString(req.Options.PRDescription)
		b.WriteString("\n")
	}

	return b.String()
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
