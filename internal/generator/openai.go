package generator

import (
	"context"
	"log"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/forgeops/autopr/internal/apperr"
)

type openaiGenerator struct {
	client openai.Client
	model  string
}

func newOpenAI(apiKey, model string) *openaiGenerator {
	return &openaiGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *openaiGenerator) Name() string { return "openai" }

func (g *openaiGenerator) GenerateChanges(ctx context.Context, req *Request) (*Result, error) {
	log.Printf("[Generator] openai(%s) generating changes for request %s", g.model, req.RequestID)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "openai generation failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.CodeGeneration, "openai returned no choices")
	}

	return parseResult(resp.Choices[0].Message.Content)
}
