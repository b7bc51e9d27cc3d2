package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/lock"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/outreach"
	"github.com/soyeahso/helix/internal/store"
)

// app holds the long-lived components shared by serve and chat.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	store   store.Store
	locker  lock.Locker
	hooks   *hooks.Manager
	service *agent.Service

	closers []io.Closer
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// rootLogger opens the logger described by cfg.Logging unless --log-level
// was given on the command line.
func rootLogger(cfg config.Config) (*logging.Logger, io.Closer, error) {
	if logLevel != "" {
		return log, nil, nil
	}
	return logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
		File:  cfg.Logging.File,
	})
}

// newApp opens the store, the model providers, the mailer and the session
// locker, and builds the conversation service on top of them. Commands that
// never reach a model pass requireModel=false so they work without provider
// credentials.
func newApp(ctx context.Context, cfg config.Config, requireModel bool) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	l, closer, err := rootLogger(cfg)
	if err != nil {
		return nil, err
	}
	a.log = l
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	a.store, err = store.Open(cfg.Store, paths.DatabasePath(), a.log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.closers = append(a.closers, a.store)
	a.log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	registry, err := llm.NewRegistryFromConfig(ctx, cfg.Providers, a.log)
	switch {
	case err == nil:
		a.log.Info().Strs("providers", registry.List()).Msg("LLM providers available")
	case requireModel:
		return nil, err
	default:
		registry = llm.NewRegistry(a.log)
	}

	oracle := llm.NewGateway(registry, llm.GatewayConfig{
		Model:       cfg.Agent.Model,
		Fallbacks:   cfg.Agent.Fallbacks,
		Timeout:     time.Duration(cfg.Agent.CallTimeoutSeconds) * time.Second,
		MaxTokens:   cfg.Agent.MaxTokens,
		Temperature: cfg.Agent.Temperature,
	}, a.log)

	mailer, err := outreach.NewMailer(ctx, cfg.Email, a.log)
	if err != nil {
		return nil, fmt.Errorf("configuring email: %w", err)
	}
	if mailer == nil {
		a.log.Info().Msg("email delivery disabled")
	} else {
		a.log.Info().Str("provider", mailer.Name()).Msg("email delivery enabled")
	}

	a.locker, err = lock.New(cfg.Session, cfg.Redis, a.log)
	if err != nil {
		return nil, fmt.Errorf("configuring session lock: %w", err)
	}
	if c, ok := a.locker.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.hooks = hooks.NewManager(a.log)
	a.service = agent.NewService(agent.ServiceDeps{
		Agent:   cfg.Agent,
		Session: cfg.Session,
		Oracle:  oracle,
		Store:   a.store,
		Locker:  a.locker,
		Mailer:  mailer,
		Hooks:   a.hooks,
		Log:     a.log,
	})
	return a, nil
}

// Close waits for pending hooks and releases everything newApp opened, in
// reverse order.
func (a *app) Close() {
	if a.hooks != nil {
		a.hooks.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.log != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
