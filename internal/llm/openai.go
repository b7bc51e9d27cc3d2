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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the OpenAI chat completions API, or any server
// that implements it.
type OpenAIClient struct {
	model string
	http  *resty.Client
}

// NewOpenAIClient creates a new OpenAI chat completions client.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = "gpt-4o"
	}
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(defaultHTTPTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent()).
		SetAuthToken(apiKey)
	return &OpenAIClient{model: model, http: http}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	body := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if resp.IsError() {
		return nil, httpError(c.Name(), resp.StatusCode(), resp.Body())
	}

	var result openAIResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "unparseable response: " + err.Error()}
	}
	if len(result.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "response contained no choices"}
	}

	choice := result.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
