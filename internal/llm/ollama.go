package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/soyeahso/helix/internal/version"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient talks to a local Ollama server through its chat endpoint.
type OllamaClient struct {
	model string
	http  *resty.Client
}

// NewOllamaClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434".
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = "llama3"
	}
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(defaultHTTPTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	return &OllamaClient{model: model, http: http}
}

// Name returns the provider name.
func (o *OllamaClient) Name() string { return "ollama" }

// Complete sends a non-streaming chat request to Ollama.
func (o *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   false,
	}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}
	if req.JSONMode {
		body["format"] = "json"
	}

	resp, err := o.http.R().SetContext(ctx).SetBody(body).Post("/api/chat")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.IsError() {
		return nil, httpError(o.Name(), resp.StatusCode(), resp.Body())
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "unparseable response: " + err.Error()}
	}

	return &CompletionResponse{
		Content:    result.Message.Content,
		StopReason: result.DoneReason,
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}, nil
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}
