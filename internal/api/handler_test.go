package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/forgeops/autopr/internal/gateway"
	"github.com/forgeops/autopr/internal/generator"
	"github.com/forgeops/autopr/internal/workflow"
)

type stubGenerator struct {
	result *generator.Result
	err    error
}

func (s *stubGenerator) GenerateChanges(ctx context.Context, req *generator.Request) (*generator.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubGenerator) Name() string { return "stub" }

func newTestServer(t *testing.T, mock *gateway.MockGateway, gen generator.Generator) *mux.Router {
	t.Helper()
	pool := workflow.NewPool(workflow.PoolConfig{Workers: 2, QueueSize: 8})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})

	factory := func(repo gateway.Repo) (gateway.Gateway, error) { return mock, nil }
	orch := workflow.New(factory, gen, pool)

	r := mux.NewRouter()
	NewHandler(orch).Register(r)
	return r
}

func defaultGen() *stubGenerator {
	return &stubGenerator{result: &generator.Result{
		Summary: "Add a script",
		Files:   []generator.ProposedFile{{Path: "scripts/run.sh", Content: "echo hi\n"}},
	}}
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestCreatePRSynchronous(t *testing.T) {
	mock := &gateway.MockGateway{}
	r := newTestServer(t, mock, defaultGen())

	rec := postJSON(t, r, "/api/pr/create",
		`{"repository":"example/demo","userRequest":"add a run script"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "completed" {
		t.Errorf("status = %v", body["status"])
	}
	if body["prUrl"] == "" || body["prUrl"] == nil {
		t.Error("response has no prUrl")
	}
	if title, _ := body["prTitle"].(string); title == "" {
		t.Error("response does not echo the synthesized prTitle")
	}
	if len(mock.CreatePullRequestCalls) != 1 {
		t.Errorf("CreatePullRequest calls = %d", len(mock.CreatePullRequestCalls))
	}
}

func TestCreatePRBadLocator(t *testing.T) {
	mock := &gateway.MockGateway{}
	r := newTestServer(t, mock, defaultGen())

	rec := postJSON(t, r, "/api/pr/create",
		`{"repository":"not a repo","userRequest":"do something"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("error code = %v", errObj["code"])
	}
	if errObj["retryPossible"] != false {
		t.Errorf("retryPossible = %v, want false", errObj["retryPossible"])
	}
	if suggestions, _ := errObj["suggestions"].([]any); len(suggestions) == 0 {
		t.Error("error carries no suggestions")
	}
	if body["errorId"] == "" || body["errorId"] == nil {
		t.Error("missing errorId")
	}

	// Boundary rejection must never reach the remote.
	if mock.Calls() != 0 {
		t.Errorf("gateway called %d times for a rejected request", mock.Calls())
	}
}

func TestCreatePRMalformedJSON(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())
	rec := postJSON(t, r, "/api/pr/create", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreatePRBranchCollisionConflict(t *testing.T) {
	mock := &gateway.MockGateway{
		BranchExistsFunc: func(ctx context.Context, branch string) (bool, error) { return true, nil },
	}
	r := newTestServer(t, mock, defaultGen())

	rec := postJSON(t, r, "/api/pr/create",
		`{"repository":"example/demo","userRequest":"x","options":{"branchName":"feature/fixed"}}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "NAME_COLLISION" {
		t.Errorf("error code = %v", errObj["code"])
	}
}

func TestCreatePRAsyncAndPoll(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())

	rec := postJSON(t, r, "/api/pr/create/async",
		`{"repository":"example/demo","userRequest":"add a run script"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	taskID, _ := body["taskId"].(string)
	if taskID == "" {
		t.Fatal("missing taskId")
	}
	location, _ := body["statusPollingLocation"].(string)
	if location != "/api/async/task/"+taskID+"/status" {
		t.Fatalf("statusPollingLocation = %q", location)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, location, nil)
		poll := httptest.NewRecorder()
		r.ServeHTTP(poll, req)
		if poll.Code != http.StatusOK {
			t.Fatalf("poll status = %d", poll.Code)
		}
		task := decodeBody(t, poll)
		switch task["status"] {
		case "completed":
			result, _ := task["result"].(map[string]any)
			if result["prUrl"] == "" || result["prUrl"] == nil {
				t.Errorf("task result = %v, want prUrl", result)
			}
			if pct, _ := task["progressPercent"].(float64); pct != 100 {
				t.Errorf("progressPercent = %v, want 100", task["progressPercent"])
			}
			if started, _ := task["startedAt"].(string); started == "" {
				t.Error("completed task has no startedAt")
			}
			if completed, _ := task["completedAt"].(string); completed == "" {
				t.Error("completed task has no completedAt")
			}
			return
		case "failed":
			t.Fatalf("task failed: %v", task["error"])
		}
		if time.Now().After(deadline) {
			t.Fatalf("task stuck in %v", task["status"])
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRequestStatus(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())

	rec := postJSON(t, r, "/api/pr/create",
		`{"repository":"example/demo","userRequest":"add a run script"}`)
	requestID, _ := decodeBody(t, rec)["requestId"].(string)
	if requestID == "" {
		t.Fatal("missing requestId")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pr/requests/"+requestID+"/status", nil)
	status := httptest.NewRecorder()
	r.ServeHTTP(status, req)

	if status.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", status.Code)
	}
	body := decodeBody(t, status)
	reqObj, _ := body["request"].(map[string]any)
	if reqObj["status"] != "completed" {
		t.Errorf("request status = %v", reqObj["status"])
	}
	runObj, _ := body["run"].(map[string]any)
	if steps, _ := runObj["steps"].([]any); len(steps) != 6 {
		t.Errorf("run steps = %v", runObj["steps"])
	}
}

func TestRequestStatusNotFound(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())
	req := httptest.NewRequest(http.MethodGet, "/api/pr/requests/nope/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAnalyzeRepository(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())

	rec := postJSON(t, r, "/api/repository/analyze", `{"repository":"example/demo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["fullName"] != "owner/repo" {
		t.Errorf("summary = %v", body)
	}
}

func TestAnalyzeRepositoryAsync(t *testing.T) {
	r := newTestServer(t, &gateway.MockGateway{}, defaultGen())

	rec := postJSON(t, r, "/api/repository/analyze", `{"repository":"example/demo","async":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if taskID, _ := decodeBody(t, rec)["taskId"].(string); taskID == "" {
		t.Fatal("missing taskId")
	}
}
