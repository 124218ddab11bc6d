// Package generator turns a natural-language change request plus the
// analyzed repository context into a set of proposed file contents.
package generator

import (
	"context"
	"fmt"

	"github.com/forgeops/autopr/internal/gateway"
)

// Request is the input to one generation call.
type Request struct {
	RequestID   string
	UserRequest string
	Summary     *gateway.RepositorySummary
}

// ProposedFile is one complete file the generator wants in the commit.
type ProposedFile struct {
	Path    string
	Content string
	Summary string
}

// Result is the parsed generator output.
type Result struct {
	Files   []ProposedFile
	Summary string
}

// Generator is the interface all providers implement.
type Generator interface {
	// GenerateChanges produces the proposed files for the request.
	GenerateChanges(ctx context.Context, req *Request) (*Result, error)

	// Name returns the provider name.
	Name() string
}

// Config contains provider configuration.
type Config struct {
	// Provider name: "openai" or "claude"
	Name string

	OpenAIKey   string
	OpenAIModel string

	AnthropicKey   string
	AnthropicModel string
}

// New creates a generator based on configuration.
func New(cfg *Config) (Generator, error) {
	switch cfg.Name {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY is required")
		}
		model := cfg.OpenAIModel
		if model == "" {
			model = "gpt-4o"
		}
		return newOpenAI(cfg.OpenAIKey, model), nil

	case "claude":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("claude: ANTHROPIC_API_KEY is required")
		}
		model := cfg.AnthropicModel
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return newClaude(cfg.AnthropicKey, model), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, claude)", cfg.Name)
	}
}
