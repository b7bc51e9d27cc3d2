package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

// ScriptedClient replays canned replies in order and records every request.
// Once the script is exhausted the last reply repeats.
type ScriptedClient struct {
	ProviderName string
	Replies      []string

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewScriptedClient returns a client that answers with replies in order.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{ProviderName: "scripted", Replies: replies}
}

func (s *ScriptedClient) Name() string { return s.ProviderName }

func (s *ScriptedClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.Replies) == 0 {
		return &CompletionResponse{}, nil
	}
	i := len(s.requests) - 1
	if i >= len(s.Replies) {
		i = len(s.Replies) - 1
	}
	return &CompletionResponse{Content: s.Replies[i], Model: s.ProviderName}, nil
}

// Requests returns a copy of the requests received so far.
func (s *ScriptedClient) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns how many completions were requested.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
