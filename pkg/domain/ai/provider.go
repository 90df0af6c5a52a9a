// Package ai defines the text-completion boundary used by the proposal
// generator.
package ai

import (
	"context"
)

// CompletionRequest represents a prompt to the model.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	// JSON asks the backend to constrain output to a JSON object when it can.
	JSON bool
}

// CompletionResponse represents the model's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the interface for all AI backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
