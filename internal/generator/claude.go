package generator

import (
	"context"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/forgeops/autopr/internal/apperr"
)

const claudeMaxTokens = 8192

type claudeGenerator struct {
	client anthropic.Client
	model  string
}

func newClaude(apiKey, model string) *claudeGenerator {
	return &claudeGenerator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *claudeGenerator) Name() string { return "claude" }

func (g *claudeGenerator) GenerateChanges(ctx context.Context, req *Request) (*Result, error) {
	log.Printf("[Generator] claude(%s) generating changes for request %s", g.model, req.RequestID)

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: claudeMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(buildPrompt(req)),
			},
		}},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "claude generation failed", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return parseResult(b.String())
}
