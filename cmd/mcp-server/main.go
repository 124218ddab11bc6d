package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgeops/autopr/internal/config"
	"github.com/forgeops/autopr/internal/gateway"
	"github.com/forgeops/autopr/internal/generator"
	"github.com/forgeops/autopr/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MCP Server] Configuration error: %v", err)
	}

	log.Println("[MCP Server] Starting autopr MCP server v1.0.0")
	log.Printf("[MCP Server] Provider: %s", cfg.Provider)

	gen, err := generator.New(&generator.Config{
		Name:           cfg.Provider,
		OpenAIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:    cfg.OpenAIModel,
		AnthropicKey:   cfg.AnthropicAPIKey,
		AnthropicModel: cfg.AnthropicModel,
	})
	if err != nil {
		log.Fatalf("[MCP Server] Failed to initialize generator: %v", err)
	}

	factory := gateway.NewClientFactory(gateway.Credentials{
		Token:         cfg.GitHubToken,
		AppID:         cfg.GitHubAppID,
		AppPrivateKey: cfg.GitHubPrivateKey,
	}, gateway.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Multiplier:  cfg.RetryMultiplier,
	})

	pool := workflow.NewPool(workflow.PoolConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize})
	orch := workflow.New(factory, gen, pool)
	handler := &Handler{orch: orch}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "autopr-server",
		Version: "v1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_pull_request",
		Description: "Generate code changes from a natural-language request and open a pull request on the target repository",
	}, handler.CreatePullRequest)
	log.Println("[MCP Server] Registered tool: create_pull_request")

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_repository",
		Description: "Analyze a repository: metadata, file inventory, languages and detected frameworks",
	}, handler.AnalyzeRepository)
	log.Println("[MCP Server] Registered tool: analyze_repository")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP Server] Server error: %v", err)
	}

	pool.Shutdown(context.Background())
	log.Println("[MCP Server] Server stopped gracefully")
}
