package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "Helix"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "openai"
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 2048
	}
	if cfg.Agent.CallTimeoutSeconds == 0 {
		cfg.Agent.CallTimeoutSeconds = 60
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 5000
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Session.SequenceScope == "" {
		cfg.Session.SequenceScope = "session"
	}
	if cfg.Session.Lock == "" {
		cfg.Session.Lock = "local"
	}
	if cfg.Session.LockTTLSeconds == 0 {
		cfg.Session.LockTTLSeconds = 300
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "none"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}
	if cfg.Email.IMAP != nil {
		if cfg.Email.IMAP.Port == 0 {
			cfg.Email.IMAP.Port = 993
		}
		if cfg.Email.IMAP.Mailbox == "" {
			cfg.Email.IMAP.Mailbox = "Sent"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
