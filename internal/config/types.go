package config

// Config is the root configuration for Helix.
type Config struct {
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Email     EmailConfig     `yaml:"email,omitempty"`
	Channels  ChannelsConfig  `yaml:"channels,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// AgentConfig controls the conversational core.
type AgentConfig struct {
	Name               string   `yaml:"name,omitempty"`
	Model              string   `yaml:"model,omitempty"`     // provider name or alias, e.g. "openai", "gpt-4o"
	Fallbacks          []string `yaml:"fallbacks,omitempty"` // tried in order when the primary is unavailable
	MaxTokens          int      `yaml:"maxTokens,omitempty"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
	CallTimeoutSeconds int      `yaml:"callTimeoutSeconds,omitempty"`
	GuidedFlow         *bool    `yaml:"guidedFlow,omitempty"` // ask intake questions before generating; defaults to true
	FastPath           *bool    `yaml:"fastPath,omitempty"`   // skip model action selection for obvious requests; defaults to true
}

// GuidedFlowEnabled reports whether the intake dialogue is on.
func (a AgentConfig) GuidedFlowEnabled() bool { return a.GuidedFlow == nil || *a.GuidedFlow }

// FastPathEnabled reports whether keyword fast-path routing is on.
func (a AgentConfig) FastPathEnabled() bool { return a.FastPath == nil || *a.FastPath }

// ProvidersConfig holds credentials for each supported model provider.
// A nil entry means the provider is not configured.
type ProvidersConfig struct {
	OpenAI *ProviderConfig `yaml:"openai,omitempty"`
	Claude *ProviderConfig `yaml:"claude,omitempty"`
	Gemini *ProviderConfig `yaml:"gemini,omitempty"`
	Ollama *ProviderConfig `yaml:"ollama,omitempty"`
}

// ProviderConfig configures a single model provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory" | "postgres"
	Path   string `yaml:"path,omitempty"`   // sqlite file; defaults under the data dir
	DSN    string `yaml:"dsn,omitempty"`    // postgres connection string
}

// SessionConfig controls per-session behavior.
type SessionConfig struct {
	SequenceScope  string `yaml:"sequenceScope,omitempty"` // "session" | "latest"
	Lock           string `yaml:"lock,omitempty"`          // "local" | "redis"
	LockTTLSeconds int    `yaml:"lockTTLSeconds,omitempty"`
}

// RedisConfig configures the redis connection used for distributed locks.
type RedisConfig struct {
	URL      string `yaml:"url,omitempty"` // takes precedence over Addr when set
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// EmailConfig selects how personalized emails are delivered.
type EmailConfig struct {
	Provider string      `yaml:"provider,omitempty"` // "none" | "smtp" | "gmail"
	SMTP     SMTPConfig  `yaml:"smtp,omitempty"`
	IMAP     *IMAPConfig `yaml:"imap,omitempty"`
	Gmail    GmailConfig `yaml:"gmail,omitempty"`
}

// SMTPConfig holds SMTP submission settings.
type SMTPConfig struct {
	Server   string `yaml:"server,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
}

// IMAPConfig enables saving a copy of SMTP-sent mail. Credentials default
// to the SMTP ones.
type IMAPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Mailbox  string `yaml:"mailbox,omitempty"`
}

// GmailConfig configures the Gmail API sender.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
	From            string `yaml:"from,omitempty"`
}

// ChannelsConfig defines chat channel configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`

	// Owner restricts the bot to one nick when set.
	Owner string `yaml:"owner,omitempty"`
	// OpOnly ignores channel messages from users without operator status.
	OpOnly bool `yaml:"opOnly,omitempty"`
	// SessionScope is "per-sender" (default) or "global" (one session per chat).
	SessionScope string `yaml:"sessionScope,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}
