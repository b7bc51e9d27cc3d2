package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Agent validation
	if cfg.Agent.MaxTokens < 0 {
		add("agent.maxTokens", "must not be negative, got %d", cfg.Agent.MaxTokens)
	}
	if cfg.Agent.CallTimeoutSeconds < 0 {
		add("agent.callTimeoutSeconds", "must not be negative, got %d", cfg.Agent.CallTimeoutSeconds)
	}
	if t := cfg.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("agent.temperature", "must be between 0 and 2, got %g", *t)
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	// Store validation
	validDrivers := []string{"sqlite", "memory", "postgres"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		add("store.dsn", "required when driver is postgres")
	}

	// Session validation
	validScopes := []string{"session", "latest"}
	if cfg.Session.SequenceScope != "" && !slices.Contains(validScopes, cfg.Session.SequenceScope) {
		add("session.sequenceScope", "must be one of %v, got %q", validScopes, cfg.Session.SequenceScope)
	}
	validLocks := []string{"local", "redis"}
	if cfg.Session.Lock != "" && !slices.Contains(validLocks, cfg.Session.Lock) {
		add("session.lock", "must be one of %v, got %q", validLocks, cfg.Session.Lock)
	}
	if cfg.Session.Lock == "redis" && cfg.Redis.URL == "" && cfg.Redis.Addr == "" {
		add("redis.addr", "redis url or addr required when session.lock is redis")
	}

	// Email validation
	validEmail := []string{"none", "smtp", "gmail"}
	if cfg.Email.Provider != "" && !slices.Contains(validEmail, cfg.Email.Provider) {
		add("email.provider", "must be one of %v, got %q", validEmail, cfg.Email.Provider)
	}
	switch cfg.Email.Provider {
	case "smtp":
		if cfg.Email.SMTP.Server == "" {
			add("email.smtp.server", "required when email.provider is smtp")
		}
		if cfg.Email.SMTP.Port < 0 || cfg.Email.SMTP.Port > 65535 {
			add("email.smtp.port", "port must be 0-65535, got %d", cfg.Email.SMTP.Port)
		}
	case "gmail":
		if cfg.Email.Gmail.CredentialsFile == "" {
			add("email.gmail.credentialsFile", "required when email.provider is gmail")
		}
	}
	if cfg.Email.IMAP != nil && cfg.Email.IMAP.Server == "" {
		add("email.imap.server", "server is required")
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
		if irc.SessionScope != "" && irc.SessionScope != "per-sender" && irc.SessionScope != "global" {
			add("channels.irc.sessionScope", "must be per-sender or global, got %q", irc.SessionScope)
		}
	}

	return issues
}
