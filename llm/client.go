// Package llm backs the convergence engine's collaborators with language
// models reached through the Gemini API or an OpenAI-compatible endpoint.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrMissingAPIKey is returned when a provider needs a key and has none.
	ErrMissingAPIKey = errors.New("API key not configured")
	// ErrEmptyCompletion is returned when the model answers with no text.
	ErrEmptyCompletion = errors.New("no completion returned")
	// ErrUnknownProvider is returned for an unsupported llm.provider value.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Request is a single-turn completion request.
type Request struct {
	Model  string
	System string
	Prompt string
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
