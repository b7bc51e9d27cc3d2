package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/helix/internal/logging"
)

// Gateway is the single entry point for model calls. It bounds every
// attempt with a timeout and walks the configured fallbacks when a provider
// is unavailable.
type Gateway struct {
	registry    *Registry
	primary     string
	fallbacks   []string
	timeout     time.Duration
	maxTokens   int
	temperature *float64
	log         *logging.Logger
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Model       string
	Fallbacks   []string
	Timeout     time.Duration
	MaxTokens   int
	Temperature *float64
}

// NewGateway creates a gateway over the registry.
func NewGateway(registry *Registry, cfg GatewayConfig, log *logging.Logger) *Gateway {
	return &Gateway{
		registry:    registry,
		primary:     cfg.Model,
		fallbacks:   cfg.Fallbacks,
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		log:         log.Sub("gateway.llm"),
	}
}

// Complete tries the primary provider, falling back when a provider is
// unavailable. Timeouts, bad requests and other failures are returned as-is.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = g.maxTokens
	}
	if req.Temperature == nil {
		req.Temperature = g.temperature
	}

	models := append([]string{g.primary}, g.fallbacks...)

	var lastErr error
	for _, model := range models {
		client, err := g.registry.Resolve(model)
		if err != nil {
			g.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		resp, err := g.call(ctx, client, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if shouldFailover(err) {
			g.log.Warn().
				Str("model", model).
				Str("kind", string(Classify(err))).
				Err(err).
				Msg("provider unavailable, trying next")
			continue
		}
		return nil, err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return nil, lastErr
}

// Ask is a convenience for a single-prompt completion.
func (g *Gateway) Ask(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.Complete(ctx, CompletionRequest{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (g *Gateway) call(ctx context.Context, client Client, req CompletionRequest) (*CompletionResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	g.log.Debug().
		Str("provider", client.Name()).
		Str("model", resp.Model).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Dur("elapsed", time.Since(start)).
		Msg("completion done")
	return resp, nil
}

// shouldFailover reports whether another provider might succeed where this
// one failed.
func shouldFailover(err error) bool {
	switch Classify(err) {
	case KindRateLimited, KindConnectionFailed, KindAuthFailed, KindPermissionDenied:
		return true
	}
	return false
}
