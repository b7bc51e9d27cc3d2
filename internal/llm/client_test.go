package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("test-provider", &MockClient{ProviderName: "test-provider"})

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Alias("gpt-4o", "openai")

	client, err := reg.Resolve("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("default-llm", &MockClient{ProviderName: "default-llm"})
	reg.SetFallback("default-llm")

	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})

	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestNewRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig(context.Background(), config.ProvidersConfig{
		Claude: &config.ProviderConfig{APIKey: "k"},
		Ollama: &config.ProviderConfig{},
	}, silentLog())
	require.NoError(t, err)

	assert.Equal(t, []string{"claude", "ollama"}, reg.List())

	c, err := reg.Resolve("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "claude", c.Name())

	c, err = reg.Resolve("llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())

	// First configured provider is the fallback.
	c, err = reg.Resolve("whatever")
	require.NoError(t, err)
	assert.Equal(t, "claude", c.Name())
}

func TestNewRegistryFromConfig_Empty(t *testing.T) {
	_, err := NewRegistryFromConfig(context.Background(), config.ProvidersConfig{
		OpenAI: &config.ProviderConfig{}, // no key
	}, silentLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM providers configured")
}

// --- Mock tests ---

func TestMockClientDefaultComplete(t *testing.T) {
	m := &MockClient{ProviderName: "mock"}
	resp, err := m.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
}

func TestScriptedClient(t *testing.T) {
	s := NewScriptedClient("first", "second")

	for _, want := range []string{"first", "second", "second"} {
		resp, err := s.Complete(context.Background(), CompletionRequest{System: want})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, "first", s.Requests()[0].System)
}

// --- Provider HTTP tests ---

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"gpt-4o-2024","choices":[{"message":{"role":"assistant","content":"{\"action\":\"x\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`)
	}))
	defer srv.Close()

	temp := 0.3
	c := NewOpenAIClient("sk-test", srv.URL, "gpt-4o")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:      "be terse",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   100,
		Temperature: &temp,
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"action":"x"}`, resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	assert.Equal(t, "gpt-4o-2024", resp.Model)

	assert.Equal(t, "gpt-4o", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestOpenAIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "")
	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.Code)
	assert.Equal(t, "Rate limit reached", pe.Message)
	assert.Equal(t, KindRateLimited, Classify(err))
}

func TestClaudeClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "system prompt", body["system"])
		assert.EqualValues(t, 1024, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","model":"claude-x","stop_reason":"end_turn","content":[{"type":"text","text":"hello "},{"type":"text","text":"there"}],"usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewClaudeClient("key", srv.URL, "claude-x")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:   "system prompt",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 3, resp.Usage.InputTokens)
}

func TestClaudeClientAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("bad", srv.URL, "").Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, KindAuthFailed, Classify(err))
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestOllamaClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "json", body["format"])

		io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"{}"},"done":true,"done_reason":"stop","prompt_eval_count":7,"eval_count":1}`)
	}))
	defer srv.Close()

	resp, err := NewOllamaClient(srv.URL, "llama3").Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, 7, resp.Usage.InputTokens)
}

func TestGeminiClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini says hi"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3}}`)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), "key", srv.URL, "gemini-test")
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", resp.Content)
	assert.Equal(t, "STOP", resp.StopReason)
	assert.Equal(t, 4, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

// --- Classification tests ---

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", errors.Join(errors.New("call"), context.DeadlineExceeded), KindTimeout},
		{"429", &ProviderError{Code: 429}, KindRateLimited},
		{"529 overloaded", &ProviderError{Code: 529}, KindRateLimited},
		{"401", &ProviderError{Code: 401}, KindAuthFailed},
		{"403", &ProviderError{Code: 403}, KindPermissionDenied},
		{"400", &ProviderError{Code: 400}, KindBadRequest},
		{"422", &ProviderError{Code: 422}, KindBadRequest},
		{"504", &ProviderError{Code: 504}, KindTimeout},
		{"503", &ProviderError{Code: 503}, KindConnectionFailed},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"refused text", errors.New("dial tcp: connection refused"), KindConnectionFailed},
		{"eof", fmt.Errorf("reading response: %w", io.EOF), KindConnectionFailed},
		{"unexpected eof", fmt.Errorf("decoding body: %w", io.ErrUnexpectedEOF), KindConnectionFailed},
		{"eof inside a word", errors.New("geofence region unsupported"), KindUnknown},
		{"rate text", errors.New("Rate limit exceeded"), KindRateLimited},
		{"key text", errors.New("API key not valid"), KindAuthFailed},
		{"other", errors.New("something odd"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestProviderErrorFormat(t *testing.T) {
	assert.Equal(t, "openai: 429 slow down", (&ProviderError{Provider: "openai", Message: "slow down", Code: 429}).Error())
	assert.Equal(t, "gemini: broken", (&ProviderError{Provider: "gemini", Message: "broken"}).Error())
}

func TestHTTPErrorEnvelope(t *testing.T) {
	pe := httpError("x", 400, []byte(`{"error":"plain message"}`))
	assert.Equal(t, "plain message", pe.Message)

	pe = httpError("x", 502, nil)
	assert.Equal(t, "Bad Gateway", pe.Message)

	pe = httpError("x", 500, []byte("upstream exploded"))
	assert.Equal(t, "upstream exploded", pe.Message)
}

func TestHTTPErrorTruncatesOnRuneBoundary(t *testing.T) {
	body := "a" + strings.Repeat("é", 200)

	pe := httpError("x", 500, []byte(body))

	assert.True(t, utf8.ValidString(pe.Message))
	assert.True(t, strings.HasSuffix(pe.Message, "..."))
	assert.Equal(t, body[:299]+"...", pe.Message)

	pe = httpError("x", 500, []byte(strings.Repeat("x", 300)))
	assert.Equal(t, strings.Repeat("x", 300), pe.Message)
}

// --- Gateway tests ---

func TestGatewayFailover(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("primary", &MockClient{ProviderName: "primary", CompleteFunc: func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		return nil, &ProviderError{Provider: "primary", Code: 503, Message: "down"}
	}})
	reg.Register("backup", &MockClient{ProviderName: "backup", CompleteFunc: func(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Content: "from " + req.Model}, nil
	}})

	gw := NewGateway(reg, GatewayConfig{Model: "primary", Fallbacks: []string{"backup"}}, silentLog())
	out, err := gw.Ask(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "from backup", out)
}

func TestGatewayNoFailoverOnBadRequest(t *testing.T) {
	backupCalled := false
	reg := NewRegistry(silentLog())
	reg.Register("primary", &MockClient{ProviderName: "primary", CompleteFunc: func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		return nil, &ProviderError{Provider: "primary", Code: 400, Message: "prompt too long"}
	}})
	reg.Register("backup", &MockClient{ProviderName: "backup", CompleteFunc: func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		backupCalled = true
		return &CompletionResponse{}, nil
	}})

	gw := NewGateway(reg, GatewayConfig{Model: "primary", Fallbacks: []string{"backup"}}, silentLog())
	_, err := gw.Ask(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, Classify(err))
	assert.False(t, backupCalled)
}

func TestGatewayTimeout(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("slow", &MockClient{ProviderName: "slow", CompleteFunc: func(ctx context.Context, _ CompletionRequest) (*CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	gw := NewGateway(reg, GatewayConfig{Model: "slow", Timeout: 20 * time.Millisecond}, silentLog())
	_, err := gw.Ask(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, Classify(err))
}

func TestGatewayAppliesDefaults(t *testing.T) {
	var seen CompletionRequest
	reg := NewRegistry(silentLog())
	reg.Register("m", &MockClient{ProviderName: "m", CompleteFunc: func(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
		seen = req
		return &CompletionResponse{Content: "ok"}, nil
	}})

	temp := 0.5
	gw := NewGateway(reg, GatewayConfig{Model: "m", MaxTokens: 321, Temperature: &temp}, silentLog())
	_, err := gw.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)

	assert.Equal(t, 321, seen.MaxTokens)
	require.NotNil(t, seen.Temperature)
	assert.InDelta(t, 0.5, *seen.Temperature, 1e-9)
	assert.Equal(t, "m", seen.Model)
}

func TestGatewayNoProvider(t *testing.T) {
	gw := NewGateway(NewRegistry(silentLog()), GatewayConfig{Model: "missing"}, silentLog())
	_, err := gw.Ask(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}
