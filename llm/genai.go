package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultTemperature float32 = 0.2

// GenAIClient calls the Gemini API.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient creates a client for the Gemini API.
func NewGenAIClient(ctx context.Context, apiKey string) (*GenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIClient{client: client}, nil
}

// Complete sends one prompt with an optional system instruction.
func (c *GenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	temperature := defaultTemperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
