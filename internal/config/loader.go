package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	for _, p := range []*ProviderConfig{cfg.Providers.OpenAI, cfg.Providers.Claude, cfg.Providers.Gemini, cfg.Providers.Ollama} {
		if p != nil {
			p.APIKey = expandEnvVars(p.APIKey)
			p.BaseURL = expandEnvVars(p.BaseURL)
		}
	}
	cfg.Store.DSN = expandEnvVars(cfg.Store.DSN)
	cfg.Redis.URL = expandEnvVars(cfg.Redis.URL)
	cfg.Redis.Password = expandEnvVars(cfg.Redis.Password)
	cfg.Email.SMTP.Password = expandEnvVars(cfg.Email.SMTP.Password)
	if cfg.Email.IMAP != nil {
		cfg.Email.IMAP.Password = expandEnvVars(cfg.Email.IMAP.Password)
	}
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Defaults(), err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	}

	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// FromRaw decodes a generic config map, as edited through path access, into
// a Config with defaults applied. Environment overrides are not consulted.
func FromRaw(raw map[string]any) (Config, error) {
	var cfg Config
	data, err := yaml.Marshal(raw)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "invalid config: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// NormalizePostgresDSN rewrites the postgres:// scheme some hosting
// platforms emit to the postgresql:// form.
func NormalizePostgresDSN(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "postgresql://" + rest
	}
	return dsn
}

// applyEnvOverrides reads HELIX_* and well-known provider variables and
// overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HELIX_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("HELIX_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("HELIX_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("HELIX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("HELIX_SEQUENCE_SCOPE"); v != "" {
		cfg.Session.SequenceScope = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Providers.OpenAI == nil {
			cfg.Providers.OpenAI = &ProviderConfig{}
		}
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		if cfg.Providers.Claude == nil {
			cfg.Providers.Claude = &ProviderConfig{}
		}
		cfg.Providers.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if cfg.Providers.Gemini == nil {
			cfg.Providers.Gemini = &ProviderConfig{}
		}
		cfg.Providers.Gemini.APIKey = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.DSN = NormalizePostgresDSN(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	if v := os.Getenv("SMTP_SERVER"); v != "" {
		cfg.Email.SMTP.Server = v
		if cfg.Email.Provider == "" || cfg.Email.Provider == "none" {
			cfg.Email.Provider = "smtp"
		}
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTP.Password = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.Email.SMTP.From = v
	}
}
