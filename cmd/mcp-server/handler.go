package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgeops/autopr/internal/workflow"
)

// Handler implements the MCP tool calls on top of the orchestrator.
type Handler struct {
	orch *workflow.Orchestrator
}

// CreatePullRequestParams defines the input of the create_pull_request
// tool.
type CreatePullRequestParams struct {
	Repository  string `json:"repository" jsonschema:"Repository locator (owner/name or URL)"`
	UserRequest string `json:"userRequest" jsonschema:"Natural-language description of the change"`
	BranchName  string `json:"branchName,omitempty" jsonschema:"Optional fixed branch name; generated when omitted"`
	BaseBranch  string `json:"baseBranch,omitempty" jsonschema:"Optional base branch; repository default when omitted"`
	PRTitle     string `json:"prTitle,omitempty" jsonschema:"Optional pull request title"`
}

// CreatePullRequest runs the whole pipeline and reports the PR.
func (h *Handler) CreatePullRequest(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params CreatePullRequestParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Server] Received create_pull_request request for %s", params.Repository)

	prReq, err := h.orch.Submit(params.Repository, params.UserRequest, workflow.Options{
		BranchName: params.BranchName,
		BaseBranch: params.BaseBranch,
		PRTitle:    params.PRTitle,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}

	run, err := h.orch.Execute(ctx, prReq.ID)
	if err != nil {
		log.Printf("[MCP Server] Pipeline failed: %v", err)
		return errorResult(err), nil, nil
	}

	return jsonResult(map[string]any{
		"success":   true,
		"requestId": prReq.ID,
		"status":    run.Status,
		"branch":    run.BranchName,
		"prUrl":     run.PRURL,
	}), nil, nil
}

// AnalyzeRepositoryParams defines the input of the analyze_repository
// tool.
type AnalyzeRepositoryParams struct {
	Repository string `json:"repository" jsonschema:"Repository locator (owner/name or URL)"`
}

// AnalyzeRepository runs repository introspection.
func (h *Handler) AnalyzeRepository(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params AnalyzeRepositoryParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Server] Received analyze_repository request for %s", params.Repository)

	summary, err := h.orch.AnalyzeRepository(ctx, params.Repository)
	if err != nil {
		return errorResult(err), nil, nil
	}

	return jsonResult(map[string]any{
		"fullName":      summary.FullName,
		"description":   summary.Description,
		"defaultBranch": summary.DefaultBranch,
		"languages":     summary.Languages,
		"frameworks":    summary.Frameworks,
		"fileCount":     len(summary.Files),
		"stars":         summary.Stars,
	}), nil, nil
}

func jsonResult(body map[string]any) *mcp.CallToolResult {
	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)},
		},
		IsError: true,
	}
}
