// Package irc lets recruiters talk to Helix over IRC, in a channel by
// addressing the bot ("helix: draft a sequence for ...") or in a DM.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/version"
)

// maxLineLen keeps PRIVMSG lines well under the 512 byte protocol limit
// once the prefix and target are added.
const maxLineLen = 400

var errNotConnected = errors.New("irc: not connected")

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg config.IRCConfig
	log *logging.Logger

	mu      sync.RWMutex
	client  *girc.Client
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel. Nothing connects until Start.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{cfg: cfg, log: log.Sub("irc")}
}

func (c *Channel) ID() string { return "irc" }

// OnMessage sets the handler for addressed messages.
func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Status reports connection state for health checks.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: c.ID(),
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) setStopped(err error) {
	c.mu.Lock()
	c.running = false
	if err != nil {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
}

func defaultPort(cfg config.IRCConfig) int {
	switch {
	case cfg.Port != 0:
		return cfg.Port
	case cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

// clientConfig translates Helix settings into a girc config. A password is
// sent with SASL PLAIN when sasl is set, else as the server password.
func clientConfig(cfg config.IRCConfig) girc.Config {
	gc := girc.Config{
		Server:  cfg.Server,
		Port:    defaultPort(cfg),
		Nick:    cfg.Nick,
		User:    cfg.Nick,
		Name:    "Helix recruiting assistant",
		SSL:     cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: cfg.Server}
	}
	switch {
	case cfg.Password == "":
	case cfg.SASL:
		gc.SASL = &girc.SASLPlain{User: cfg.Nick, Pass: cfg.Password}
	default:
		gc.ServerPass = cfg.Password
	}
	return gc
}

// Start connects and blocks until the connection ends or ctx is done.
func (c *Channel) Start(ctx context.Context) error {
	gc := clientConfig(c.cfg)
	client := girc.New(gc)
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", gc.Server).
		Int("port", gc.Port).
		Str("nick", gc.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", gc.SSL).
		Msg("connecting to IRC")

	done := make(chan error, 1)
	go func() { done <- client.Connect() }()

	select {
	case err := <-done:
		c.setStopped(err)
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.setStopped(nil)
		return ctx.Err()
	}
}

// Stop quits the server if connected.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client != nil && client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		client.Quit("Helix shutting down")
	}
	c.setStopped(nil)
	return nil
}

// Send delivers msg.Body to a channel or nick, one PRIVMSG per line.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return errNotConnected
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineLen)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}
	c.log.Debug().Str("to", msg.To).Int("lines", len(lines)).Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.setStopped(nil)
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	isOp := func(nick, channel string) bool {
		user := client.LookupUser(nick)
		if user == nil {
			return false
		}
		perms, ok := user.Perms.Lookup(channel)
		return ok && perms.IsAdmin()
	}

	in, reason := c.admit(client.GetNick(), e.Source.Name, e.Params[0], e.IsFromChannel(), body, isOp)
	if reason != "" {
		c.log.Debug().Str("nick", e.Source.Name).Str("target", e.Params[0]).Str("reason", reason).Msg("ignoring message")
		return
	}
	c.deliverInbound(in.from, in.chatID, in.chatType, in.body)
}

type admitted struct {
	from, chatID, body string
	chatType           domain.ChatType
}

// admit applies addressing, owner and operator rules to one PRIVMSG. It
// returns a non-empty reason when the message is not for Helix.
func (c *Channel) admit(self, sender, target string, fromChannel bool, body string, isOp func(nick, channel string) bool) (admitted, string) {
	if strings.EqualFold(sender, self) {
		return admitted{}, "own message"
	}
	body, ok := addressedBody(body, self, !fromChannel)
	if !ok {
		return admitted{}, "not addressed"
	}
	if c.cfg.Owner != "" && !strings.EqualFold(sender, c.cfg.Owner) {
		return admitted{}, "not owner"
	}
	if !fromChannel {
		return admitted{from: sender, chatID: sender, body: body, chatType: domain.ChatTypeDM}, ""
	}
	if c.cfg.OpOnly && !isOp(sender, target) {
		return admitted{}, "not operator"
	}
	return admitted{from: sender, chatID: target, body: body, chatType: domain.ChatTypeGroup}, ""
}

func (c *Channel) deliverInbound(from, chatID string, chatType domain.ChatType, body string) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: c.ID(),
		From:      from,
		ChatID:    chatID,
		ChatType:  chatType,
		Body:      body,
		Timestamp: time.Now(),
	})
}

// addressedBody returns the text meant for the bot. Direct messages are
// always addressed; channel messages must start with "nick:" or "nick,".
func addressedBody(body, nick string, direct bool) (string, bool) {
	body = strings.TrimSpace(body)
	if direct {
		return body, body != ""
	}
	if nick == "" || len(body) <= len(nick) || !strings.EqualFold(body[:len(nick)], nick) {
		return "", false
	}
	switch body[len(nick)] {
	case ':', ',':
	default:
		return "", false
	}
	rest := strings.TrimSpace(body[len(nick)+1:])
	return rest, rest != ""
}

// splitMessage breaks text into IRC lines. Each newline starts a new line
// because PRIVMSG cannot carry one; lines longer than maxLen are cut at
// the last space before the limit, or at maxLen when there is none. Blank
// lines are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \r")
		for len(line) > maxLen {
			cut := strings.LastIndex(line[:maxLen], " ")
			if cut <= 0 {
				cut = maxLen
			}
			chunks = append(chunks, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
