package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("gpt-4o", "openai") means "gpt-4o" resolves to the "openai" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var providerAliases = map[string][]string{
	"openai": {"gpt-4", "gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-5"},
	"claude": {"anthropic", "sonnet", "opus", "haiku"},
	"gemini": {"google", "gemini-pro", "gemini-flash"},
	"ollama": {"llama", "llama3", "mistral", "local"},
}

// NewRegistryFromConfig registers a client for every configured provider.
// The first configured provider, in the order openai, claude, gemini,
// ollama, becomes the fallback.
func NewRegistryFromConfig(ctx context.Context, cfg config.ProvidersConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	register := func(name string, client Client) {
		reg.Register(name, client)
		for _, alias := range providerAliases[name] {
			reg.Alias(alias, name)
		}
		if reg.fallback == "" {
			reg.SetFallback(name)
		}
	}

	if p := cfg.OpenAI; p != nil && p.APIKey != "" {
		register("openai", NewOpenAIClient(p.APIKey, p.BaseURL, p.Model))
	}
	if p := cfg.Claude; p != nil && p.APIKey != "" {
		register("claude", NewClaudeClient(p.APIKey, p.BaseURL, p.Model))
	}
	if p := cfg.Gemini; p != nil && p.APIKey != "" {
		client, err := NewGeminiClient(ctx, p.APIKey, p.BaseURL, p.Model)
		if err != nil {
			return nil, err
		}
		register("gemini", client)
	}
	if p := cfg.Ollama; p != nil {
		register("ollama", NewOllamaClient(p.BaseURL, p.Model))
	}

	if len(reg.clients) == 0 {
		return nil, fmt.Errorf("no LLM providers configured: set OPENAI_API_KEY or configure providers in helix.yaml")
	}
	return reg, nil
}
