// Package genai abstracts the text-completion backend behind a narrow
// prompt-to-text interface so decision logic stays testable with
// deterministic fakes.
package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces text for a prompt. Implementations may fail or time
// out; callers must treat malformed output as recoverable.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// systemPrompt enforces JSON-only output for structured requests. Prose,
// markdown fences, and XML tags break downstream parsing.
const systemPrompt = "You are a build-orchestration assistant. When a JSON schema is provided, your ONLY output must be valid JSON matching it. No markdown, no code fences, no prose."

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 120 * time.Second

// OpenAIGenerator implements Generator over the OpenAI chat-completions API.
// Create once and reuse; the underlying client is safe for concurrent use.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a generator for the given API key and model.
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// Generate sends the prompt and returns the first choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractJSON strips markdown code fences and surrounding prose from a
// generated response, returning the outermost JSON object. Models
// occasionally wrap JSON despite instructions; stripping here keeps every
// call site's parse path uniform.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
