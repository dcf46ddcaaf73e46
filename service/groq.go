package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// groqModels are tried in order of preference on every call; a per-model
// failure falls through to the next before the provider as a whole fails.
var groqModels = []string{
	"llama-3.3-70b-versatile", // latest high performance
	"llama-3.1-8b-instant",    // extremely fast
	"mixtral-8x7b-32768",      // large context fallback
}

// GroqProvider talks to Groq's OpenAI-compatible chat completions API.
type GroqProvider struct {
	client *openai.Client
	models []string
}

// NewGroqProvider returns nil when GROQ_API_KEY is not configured.
func NewGroqProvider() *GroqProvider {
	apiKey := strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	if apiKey == "" {
		return nil
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqBaseURL
	return &GroqProvider{
		client: openai.NewClientWithConfig(config),
		models: groqModels,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

// complete tries each model in order until one answers.
func (p *GroqProvider) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	var lastErr error
	for _, model := range p.models {
		req := openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.3,
		}
		if jsonMode {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("model %s: %w", model, err)
			if ctx.Err() != nil {
				break // attempt budget spent, no point trying further models
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s: empty response", model)
			continue
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
	return "", lastErr
}

func (p *GroqProvider) Classify(ctx context.Context, clauseText string) (*ClauseAnalysis, error) {
	content, err := p.complete(ctx, classifyPrompt(clauseText), true)
	if err != nil {
		return nil, err
	}
	var analysis ClauseAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("malformed classification response: %w", err)
	}
	return &analysis, nil
}

func (p *GroqProvider) Answer(ctx context.Context, docContext, question string) (string, error) {
	return p.complete(ctx, answerPrompt(docContext, question), false)
}

// classifyPrompt asks for the exact ClauseAnalysis JSON shape.
func classifyPrompt(clauseText string) string {
	return fmt.Sprintf(`Analyze this legal clause.
Clause: %q

Return JSON with:
- score: 0.0-1.0 (risk level)
- category: "Red", "Yellow", "Green"
- type: e.g. "Liability", "Termination"
- explanation: max 15 words
- summary: 1-line summary
- entities: list of objects { "text": "entity_name", "type": "Party/Date/Money" }
- legal_terms: list of objects { "term": "term", "definition": "short definition" }`, clauseText)
}

// answerPrompt grounds the model strictly in the supplied document context.
func answerPrompt(docContext, question string) string {
	return fmt.Sprintf(`You are a helpful legal assistant. Answer the user's question based ONLY on the document context provided.
If the answer is not in the document, say so clearly.

Document context:
%s

User question: %s`, docContext, question)
}
