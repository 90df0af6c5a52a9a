package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infraAI "github.com/SECURESLOG/resolution-ai-sub002/pkg/ai"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

func TestOpenAIProvider_Complete_JSONMode(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"schedule":[]}`}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	defer server.Close()

	p := infraAI.NewOpenAIProviderWithClient("gpt-4o-mini", "test-key", server.URL, server.Client())
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "plan", System: "sys", JSON: true})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `{"schedule":[]}` || resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("unexpected response %+v", resp)
	}
	format, _ := received["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", received["response_format"])
	}
	if msgs, _ := received["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", received["messages"])
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	if _, err := infraAI.NewOpenAIProvider("", "").Complete(context.Background(), ai.CompletionRequest{}); err == nil {
		t.Error("expected missing key error")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	p := infraAI.NewOpenAIProviderWithClient("", "k", server.URL, server.Client())
	_, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
	var apiErr *infraAI.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError || apiErr.Permanent() {
		t.Errorf("expected retryable APIError, got %v", err)
	}
	if p.ID() != "openai:gpt-4o-mini" {
		t.Errorf("unexpected default model %s", p.ID())
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["max_tokens"] != float64(4096) {
			t.Errorf("expected default max_tokens, got %v", body["max_tokens"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "hello"}},
			"usage":   map[string]int{"input_tokens": 3, "output_tokens": 1},
		})
	}))
	defer server.Close()

	p := infraAI.NewAnthropicProviderWithClient("", "secret", server.URL, server.Client())
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "hi", JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "hello" || resp.Usage.InputTokens != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["format"] != "json" || body["stream"] != false {
			t.Errorf("unexpected request %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  {}\n", "done": true, "prompt_eval_count": 7, "eval_count": 2})
	}))
	defer server.Close()

	p := infraAI.NewOllamaProviderWithClient("llama3", server.URL+"/", server.Client())
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x", JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "{}" || resp.Usage.InputTokens != 7 {
		t.Errorf("unexpected response %+v", resp)
	}

	bad := infraAI.NewOllamaProviderWithClient("llama3; rm -rf", server.URL, server.Client())
	if _, err := bad.Complete(context.Background(), ai.CompletionRequest{}); err == nil {
		t.Error("expected invalid model name error")
	}
}

type faultyProvider struct {
	attempts int
	maxFail  int
}

func (f *faultyProvider) ID() string { return "faulty" }
func (f *faultyProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	f.attempts++
	if f.attempts <= f.maxFail {
		return nil, errors.New("transient error")
	}
	return &ai.CompletionResponse{Text: "success"}, nil
}

func TestResilientProvider_Retries(t *testing.T) {
	faulty := &faultyProvider{maxFail: 2}
	p := infraAI.NewResilientProviderWithConfig(faulty, infraAI.ResilienceConfig{
		MaxRetries: 4,
		RetryDelay: 5 * time.Millisecond,
		Timeout:    5 * time.Second,
	})
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.Text != "success" || faulty.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", faulty.attempts)
	}
	if p.ID() != "faulty" {
		t.Errorf("ID should delegate, got %s", p.ID())
	}
}

func TestResilientProvider_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "invalid x-api-key", http.StatusUnauthorized)
	}))
	defer server.Close()

	inner := infraAI.NewAnthropicProviderWithClient("", "bad", server.URL, server.Client())
	p := infraAI.NewResilientProviderWithConfig(inner, infraAI.ResilienceConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	})
	_, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
	if !infraAI.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

type slowProvider struct{}

func (s *slowProvider) ID() string { return "slow" }
func (s *slowProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return &ai.CompletionResponse{Text: "too late"}, nil
	}
}

func TestResilientProvider_Timeout(t *testing.T) {
	p := infraAI.NewResilientProvider(&slowProvider{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Complete(ctx, ai.CompletionRequest{}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestResilienceConfig_ZeroValuesUseDefaults(t *testing.T) {
	p := infraAI.NewResilientProviderWithConfig(&infraAI.MockProvider{Responses: []string{"ok"}}, infraAI.ResilienceConfig{})
	if p.Config() != infraAI.DefaultResilienceConfig() {
		t.Errorf("expected defaults, got %+v", p.Config())
	}
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"", "ollama", "openai", "anthropic", "mock"} {
		if _, err := infraAI.NewProvider(infraAI.ProviderConfig{Provider: name}); err != nil {
			t.Errorf("NewProvider(%q) failed: %v", name, err)
		}
	}
	if _, err := infraAI.NewProvider(infraAI.ProviderConfig{Provider: "clippy"}); err == nil {
		t.Error("expected unsupported provider error")
	}
}

func TestMockProvider_Replays(t *testing.T) {
	m := &infraAI.MockProvider{Model: "m", Responses: []string{"a", "b"}}
	var got []string
	for i := 0; i < 3; i++ {
		resp, err := m.Complete(context.Background(), ai.CompletionRequest{Prompt: "p"})
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, resp.Text)
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "b" || m.Calls() != 3 {
		t.Errorf("unexpected replay %v", got)
	}
}
