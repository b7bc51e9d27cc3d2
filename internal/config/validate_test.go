package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Port(t *testing.T) {
	cfg := Defaults()

	cfg.Gateway.Port = -1
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.port")

	cfg.Gateway.Port = 70000
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.port")

	for _, port := range []int{0, 8080, 65535} {
		cfg.Gateway.Port = port
		assert.Empty(t, Validate(&cfg), "port %d should be valid", port)
	}
}

func TestValidate_Bind(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Bind = "tailnet"
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.bind")

	cfg.Gateway.Bind = "custom"
	assert.Contains(t, issuePaths(Validate(&cfg)), "gateway.customBindHost")

	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Temperature(t *testing.T) {
	cfg := Defaults()
	hot := 3.5
	cfg.Agent.Temperature = &hot
	assert.Contains(t, issuePaths(Validate(&cfg)), "agent.temperature")

	ok := 0.7
	cfg.Agent.Temperature = &ok
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Store(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "mongo"
	assert.Contains(t, issuePaths(Validate(&cfg)), "store.driver")

	cfg.Store.Driver = "postgres"
	assert.Contains(t, issuePaths(Validate(&cfg)), "store.dsn")

	cfg.Store.DSN = "postgresql://localhost/helix"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Session(t *testing.T) {
	cfg := Defaults()
	cfg.Session.SequenceScope = "global"
	assert.Contains(t, issuePaths(Validate(&cfg)), "session.sequenceScope")

	cfg = Defaults()
	cfg.Session.Lock = "redis"
	assert.Contains(t, issuePaths(Validate(&cfg)), "redis.addr")

	cfg.Redis.Addr = "localhost:6379"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Email(t *testing.T) {
	cfg := Defaults()
	cfg.Email.Provider = "sendgrid"
	assert.Contains(t, issuePaths(Validate(&cfg)), "email.provider")

	cfg.Email.Provider = "smtp"
	assert.Contains(t, issuePaths(Validate(&cfg)), "email.smtp.server")

	cfg.Email.SMTP.Server = "smtp.example.com"
	assert.Empty(t, Validate(&cfg))

	cfg.Email.Provider = "gmail"
	assert.Contains(t, issuePaths(Validate(&cfg)), "email.gmail.credentialsFile")

	cfg.Email.Provider = "none"
	cfg.Email.IMAP = &IMAPConfig{}
	assert.Contains(t, issuePaths(Validate(&cfg)), "email.imap.server")
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	assert.Contains(t, issuePaths(Validate(&cfg)), "logging.level")

	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"} {
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), "level %q should be valid", level)
	}
}

func TestValidate_IRC(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.IRC = &IRCConfig{Port: 70000, SASL: true, SessionScope: "room"}

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "channels.irc.server")
	assert.Contains(t, paths, "channels.irc.nick")
	assert.Contains(t, paths, "channels.irc.port")
	assert.Contains(t, paths, "channels.irc.sasl")
	assert.Contains(t, paths, "channels.irc.sessionScope")

	cfg.Channels.IRC = &IRCConfig{Server: "irc.libera.chat", Nick: "helix", Port: 6697, SASL: true, Password: "pw"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -5
	cfg.Logging.Level = "loud"

	issues := Validate(&cfg)
	require.Len(t, issues, 2)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad port"}
	assert.Equal(t, "gateway.port: bad port", issue.String())
}
