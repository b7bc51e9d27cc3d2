package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "DATABASE_URL", "REDIS_URL",
		"SMTP_SERVER", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "FROM_EMAIL", "PORT",
		"HELIX_MODEL", "HELIX_GATEWAY_PORT", "HELIX_GATEWAY_BIND", "HELIX_LOG_LEVEL", "HELIX_SEQUENCE_SCOPE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "Helix", cfg.Agent.Name)
	assert.Equal(t, "openai", cfg.Agent.Model)
	assert.Equal(t, 60, cfg.Agent.CallTimeoutSeconds)
	assert.True(t, cfg.Agent.GuidedFlowEnabled())
	assert.True(t, cfg.Agent.FastPathEnabled())
	assert.Equal(t, 5000, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "session", cfg.Session.SequenceScope)
	assert.Equal(t, "local", cfg.Session.Lock)
	assert.Equal(t, "none", cfg.Email.Provider)
	assert.Equal(t, 587, cfg.Email.SMTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load("/nonexistent/path/helix.yaml")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Nil(t, cfg.Providers.OpenAI)
}

func TestLoadValidYAML(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "helix.yaml")
	yaml := `
agent:
  model: gpt-4o
  fallbacks: [claude]
  temperature: 0.2
  guidedFlow: false
providers:
  openai:
    apiKey: ${TEST_OPENAI_KEY}
  claude:
    apiKey: literal-key
    model: claude-sonnet-4-5
gateway:
  port: 9999
  bind: lan
store:
  driver: memory
session:
  sequenceScope: latest
email:
  provider: smtp
  smtp:
    server: smtp.example.com
    username: hr@example.com
  imap:
    server: imap.example.com
logging:
  level: debug
  json: true
channels:
  irc:
    server: irc.libera.chat
    port: 6697
    nick: helix
    channels:
      - "#hiring"
    useTLS: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, []string{"claude"}, cfg.Agent.Fallbacks)
	require.NotNil(t, cfg.Agent.Temperature)
	assert.InDelta(t, 0.2, *cfg.Agent.Temperature, 1e-9)
	assert.False(t, cfg.Agent.GuidedFlowEnabled())
	assert.True(t, cfg.Agent.FastPathEnabled())

	require.NotNil(t, cfg.Providers.OpenAI)
	assert.Equal(t, "sk-from-env", cfg.Providers.OpenAI.APIKey)
	require.NotNil(t, cfg.Providers.Claude)
	assert.Equal(t, "literal-key", cfg.Providers.Claude.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Providers.Claude.Model)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "latest", cfg.Session.SequenceScope)
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, 587, cfg.Email.SMTP.Port)
	require.NotNil(t, cfg.Email.IMAP)
	assert.Equal(t, 993, cfg.Email.IMAP.Port)
	assert.Equal(t, "Sent", cfg.Email.IMAP.Mailbox)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)

	require.NotNil(t, cfg.Channels.IRC)
	assert.Equal(t, "irc.libera.chat", cfg.Channels.IRC.Server)
	assert.Equal(t, 6697, cfg.Channels.IRC.Port)
	assert.Equal(t, []string{"#hiring"}, cfg.Channels.IRC.Channels)

	assert.Empty(t, Validate(&cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HELIX_GATEWAY_PORT", "12345")
	t.Setenv("HELIX_LOG_LEVEL", "TRACE")
	t.Setenv("HELIX_MODEL", "gemini")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load("/nonexistent/helix.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "gemini", cfg.Agent.Model)
	require.NotNil(t, cfg.Providers.OpenAI)
	assert.Equal(t, "sk-env", cfg.Providers.OpenAI.APIKey)
}

func TestLoadLegacyEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PORT", "8000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/helix")
	t.Setenv("SMTP_SERVER", "smtp.gmail.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USERNAME", "recruiter@example.com")
	t.Setenv("SMTP_PASSWORD", "app-password")
	t.Setenv("FROM_EMAIL", "talent@example.com")

	cfg, err := Load("/nonexistent/helix.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgresql://u:p@db:5432/helix", cfg.Store.DSN)
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTP.Server)
	assert.Equal(t, 465, cfg.Email.SMTP.Port)
	assert.Equal(t, "recruiter@example.com", cfg.Email.SMTP.Username)
	assert.Equal(t, "app-password", cfg.Email.SMTP.Password)
	assert.Equal(t, "talent@example.com", cfg.Email.SMTP.From)
}

func TestNormalizePostgresDSN(t *testing.T) {
	assert.Equal(t, "postgresql://a@b/c", NormalizePostgresDSN("postgres://a@b/c"))
	assert.Equal(t, "postgresql://a@b/c", NormalizePostgresDSN("postgresql://a@b/c"))
	assert.Equal(t, "host=db user=u", NormalizePostgresDSN("host=db user=u"))
}

func TestLoadDotEnv(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, err := Load("/nonexistent/helix.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg.Providers.OpenAI)
	assert.Equal(t, "sk-dotenv", cfg.Providers.OpenAI.APIKey)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	SetValueAtPath(raw, []string{"session", "sequenceScope"}, "latest")
	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)
	val, ok := GetValueAtPath(loaded, []string{"session", "sequenceScope"})
	assert.True(t, ok)
	assert.Equal(t, "latest", val)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "latest", cfg.Session.SequenceScope)
}

func TestFromRaw(t *testing.T) {
	raw := map[string]any{
		"agent":   map[string]any{"model": "claude"},
		"gateway": map[string]any{"port": 7000},
	}
	cfg, err := FromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.Agent.Model)
	assert.Equal(t, 7000, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)

	_, err = FromRaw(map[string]any{"gateway": map[string]any{"port": "not-a-number"}})
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}
