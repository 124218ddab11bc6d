package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/forgeops/autopr/internal/api"
	"github.com/forgeops/autopr/internal/config"
	"github.com/forgeops/autopr/internal/gateway"
	"github.com/forgeops/autopr/internal/generator"
	"github.com/forgeops/autopr/internal/workflow"
)

var (
	loadDotEnv         = godotenv.Load
	newGenerator       = generator.New
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting autopr server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Provider: %s", cfg.Provider)
	log.Printf("Workers: %d, queue size: %d", cfg.Workers, cfg.QueueSize)

	gen, err := newGenerator(&generator.Config{
		Name:           cfg.Provider,
		OpenAIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:    cfg.OpenAIModel,
		AnthropicKey:   cfg.AnthropicAPIKey,
		AnthropicModel: cfg.AnthropicModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}
	log.Printf("Generator: %s", gen.Name())

	creds := gateway.Credentials{
		Token:         cfg.GitHubToken,
		AppID:         cfg.GitHubAppID,
		AppPrivateKey: cfg.GitHubPrivateKey,
	}
	retry := gateway.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Multiplier:  cfg.RetryMultiplier,
	}
	factory := gateway.NewClientFactory(creds, retry)

	pool := workflow.NewPool(workflow.PoolConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	})
	defer pool.Shutdown(ctx)

	orch := workflow.New(factory, gen, pool)

	r := mux.NewRouter()
	api.NewHandler(orch).Register(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"autopr","status":"running","provider":"%s"}`, cfg.Provider)
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("PR endpoint: http://localhost%s/api/pr/create", addr)
	log.Printf("Health check: http://localhost%s/health", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}
