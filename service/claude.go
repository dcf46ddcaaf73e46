package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeProvider talks to the Anthropic Messages API.
type ClaudeProvider struct {
	client anthropic.Client
	model  string
}

// NewClaudeProvider returns nil when ANTHROPIC_API_KEY is not configured.
func NewClaudeProvider() *ClaudeProvider {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil
	}
	model := os.Getenv("CLAUDE_MODEL")
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return strings.TrimSpace(out.String()), nil
}

func (p *ClaudeProvider) Classify(ctx context.Context, clauseText string) (*ClauseAnalysis, error) {
	content, err := p.complete(ctx,
		"Respond with a single JSON object and nothing else.",
		classifyPrompt(clauseText))
	if err != nil {
		return nil, err
	}
	var analysis ClauseAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &analysis); err != nil {
		return nil, fmt.Errorf("malformed classification response: %w", err)
	}
	return &analysis, nil
}

func (p *ClaudeProvider) Answer(ctx context.Context, docContext, question string) (string, error) {
	return p.complete(ctx, "", answerPrompt(docContext, question))
}

// extractJSONObject trims any prose around the first top-level JSON object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
