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

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
)

// ClaudeClient is a direct HTTP client for the Anthropic messages API.
type ClaudeClient struct {
	model string
	http  *resty.Client
}

// NewClaudeClient creates a new Claude API client.
func NewClaudeClient(apiKey, baseURL, model string) *ClaudeClient {
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(defaultHTTPTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", claudeAPIVersion)
	return &ClaudeClient{model: model, http: http}
}

// Name returns the provider name.
func (c *ClaudeClient) Name() string { return "claude" }

// Complete sends a non-streaming completion request to Claude API.
func (c *ClaudeClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	messages := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role == RoleSystem {
			role = RoleUser
		}
		messages = append(messages, map[string]string{"role": role, "content": m.Content})
	}

	body := map[string]any{
		"model":      c.model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("claude request: %w", err)
	}
	if resp.IsError() {
		return nil, httpError(c.Name(), resp.StatusCode(), resp.Body())
	}

	var result claudeAPIResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "unparseable response: " + err.Error()}
	}

	var content strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: result.StopReason,
		Usage: Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}, nil
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Content    []claudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
