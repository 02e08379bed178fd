package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/auto-migrate/internal/config"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "gpt-4o",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// --- Tests ---

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("MINIMAX_API_KEY", "")

	providers := []config.ProviderType{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle, config.ProviderMiniMax}
	for _, p := range providers {
		_, err := NewProvider(context.Background(), p, "some-model")
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), "unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider(context.Background(), config.ProviderOllama, "qwen2.5-coder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != defaultOllamaHost {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryProviderNames(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("MINIMAX_API_KEY", "test-key")
	t.Setenv("OPENROUTER_API_KEY", "test-key")

	tests := []struct {
		provider config.ProviderType
		want     string
	}{
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderOpenAI, "openai"},
		{config.ProviderGoogle, "google"},
		{config.ProviderMiniMax, "minimax"},
		{config.ProviderOpenRouter, "openrouter"},
	}
	for _, tt := range tests {
		p, err := NewProvider(context.Background(), tt.provider, "m")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.provider, err)
		}
		if p.Name() != tt.want {
			t.Errorf("expected name %q, got %q", tt.want, p.Name())
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ClassTransient},
		{"canceled", context.Canceled, ClassInvalid},
		{"503", &APIError{Provider: "openai", StatusCode: 503, Message: "unavailable"}, ClassTransient},
		{"529 overloaded", &APIError{Provider: "anthropic", StatusCode: 529, Message: "overloaded_error: Overloaded"}, ClassTransient},
		{"429 rate limit", &APIError{Provider: "openai", StatusCode: 429, Message: "Rate limit reached"}, ClassTransient},
		{"429 quota", &APIError{Provider: "openai", StatusCode: 429, Message: "You exceeded your current quota"}, ClassQuota},
		{"402", &APIError{Provider: "openrouter", StatusCode: 402, Message: "payment required"}, ClassQuota},
		{"400", &APIError{Provider: "openai", StatusCode: 400, Message: "bad request"}, ClassInvalid},
		{"401", &APIError{Provider: "openai", StatusCode: 401, Message: "invalid api key"}, ClassInvalid},
		{"wrapped", fmt.Errorf("file a.ts: %w", &APIError{StatusCode: 502}), ClassTransient},
		{"plain overloaded", errors.New("model is overloaded"), ClassTransient},
		{"plain other", errors.New("something broke"), ClassInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestAnthropicErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		w.WriteHeader(529)
		fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "claude")
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 529 {
		t.Errorf("status = %d, want 529", apiErr.StatusCode)
	}
	if Classify(err) != ClassTransient {
		t.Errorf("expected transient class")
	}
}

func TestAnthropicSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],"model":"claude","stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "claude")
	p.baseURL = srv.URL

	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello world" || resp.InputTokens != 3 || resp.OutputTokens != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL+"/", "missing").Complete(context.Background(), CompletionRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if Classify(err) != ClassInvalid {
		t.Errorf("expected invalid class")
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if req.Model != "qwen2.5-coder" || req.Stream || req.Format != "json" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.Options.NumPredict != defaultMaxTokens || len(req.Messages) != 2 {
			t.Errorf("unexpected options or messages: %+v", req)
		}
		// No prompt_eval_count: the prompt was cached.
		fmt.Fprint(w, `{"model":"qwen2.5-coder","message":{"role":"assistant","content":"{\"migratedCode\":\"x\"}"},"done":true,"done_reason":"stop","eval_count":7}`)
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(srv.URL+"/", "qwen2.5-coder").Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "translate this"},
		},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"migratedCode":"x"}` || resp.FinishReason != "stop" {
		t.Errorf("unexpected response: %+v", resp)
	}
	// "be brief" and "translate this" estimate to 2 and 3 tokens.
	if resp.InputTokens != 5 || resp.OutputTokens != 7 {
		t.Errorf("unexpected usage: in=%d out=%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOllamaErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'missing' not found, try pulling it first"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Complete(context.Background(), CompletionRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "model 'missing' not found, try pulling it first" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestOpenAICompatWrapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"upstream overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	p := newCompatProvider("openrouter", "k", srv.URL, "m")
	_, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Provider != "openrouter" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if Classify(err) != ClassTransient {
		t.Errorf("expected transient class")
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	_, err := rl.Complete(ctx, req)
	if err == nil {
		t.Fatal("expected error due to rate limiting + context timeout")
	}
	if Classify(err) != ClassTransient {
		t.Errorf("expected a limiter wait to be transient, got %s for %v", Classify(err), err)
	}
	if len(mock.Calls) != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", len(mock.Calls))
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	if NewRateLimitedProvider(mock, 0) != Provider(mock) {
		t.Error("expected rpm 0 to return the provider unchanged")
	}
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	u.Add(&CompletionResponse{Model: "gpt-4o", InputTokens: 1_000_000, OutputTokens: 0})
	u.Add(&CompletionResponse{Model: "unknown", InputTokens: 5, OutputTokens: 7})
	u.Add(nil)

	if u.InputTokens != 1_000_005 || u.OutputTokens != 7 {
		t.Errorf("unexpected token totals: %+v", u)
	}
	if u.CostUSD < 2.49 || u.CostUSD > 2.51 {
		t.Errorf("expected ~$2.50, got %f", u.CostUSD)
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	cost := EstimateCost("unknown-model", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// claude-sonnet-4-5: $3/1M input, $15/1M output
	cost := EstimateCost("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000)
	expected := 18.0
	if cost < expected-0.01 || cost > expected+0.01 {
		t.Errorf("expected cost ~$%.2f, got $%.2f", expected, cost)
	}
}

func TestEstimateCostResolvesReportedNames(t *testing.T) {
	tests := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-2024-08-06", 12.50},
		{"gpt-4o-mini-2024-07-18", 0.75},
		{"claude-haiku-4-5-20251001", 4.80},
		{"anthropic/claude-sonnet-4-5", 18.00},
		{"models/gemini-2.5-flash", 2.80},
		{"MiniMax-M2.5", 1.50},
		{"minimax/minimax-m2.5", 1.50},
		{"qwen2.5-coder:32b", 0},
		{"gpt-4oo", 0},
	}
	for _, tt := range tests {
		got := EstimateCost(tt.model, 1_000_000, 1_000_000)
		if got < tt.want-0.01 || got > tt.want+0.01 {
			t.Errorf("EstimateCost(%q) = %.2f, want %.2f", tt.model, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
	}

	for _, tt := range tests {
		got := EstimateTokens(tt.text)
		if got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
