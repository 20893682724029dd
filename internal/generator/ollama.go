package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/ollama"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/schema"
)

// OllamaGenerator generates SQL through a local Ollama model, using the
// schema service for prompt context.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
	schema *schema.Service
	policy policy.Policy
}

// NewOllama creates an OllamaGenerator.
func NewOllama(client *ollama.Client, model string, svc *schema.Service, p policy.Policy) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model, schema: svc, policy: p}
}

// GenerateSQL builds the prompt, runs one chat completion, and extracts the
// candidate statement from the raw output.
func (g *OllamaGenerator) GenerateSQL(ctx context.Context, question, errorContext string) (Generation, error) {
	blob, err := g.schema.Blob(ctx)
	if err != nil {
		return Generation{}, fmt.Errorf("loading schema for prompt: %w", err)
	}

	prompt := BuildPrompt(blob, question, g.policy, errorContext)

	start := time.Now()
	raw, err := g.client.Chat(ctx, g.model, []ollama.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Generation{}, fmt.Errorf("generating SQL: %w", err)
	}

	return Generation{
		Raw:       raw,
		SQL:       ExtractSQL(raw),
		Prompt:    prompt,
		Model:     g.model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
