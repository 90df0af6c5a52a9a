package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

// MockProvider replays canned responses in order, repeating the last one.
// It backs the "mock" provider name and tests.
type MockProvider struct {
	Model     string
	Responses []string
	Err       error

	mu       sync.Mutex
	calls    int
	requests []ai.CompletionRequest
}

func (m *MockProvider) ID() string { return "mock:" + m.Model }

func (m *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock provider has no responses")
	}
	i := m.calls - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	text := m.Responses[i]
	return &ai.CompletionResponse{
		Text:  text,
		Model: m.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt)/4 + 1, OutputTokens: len(text)/4 + 1},
	}, nil
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request.
func (m *MockProvider) LastRequest() ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.CompletionRequest{}
	}
	return m.requests[len(m.requests)-1]
}
