package outreach

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// SentFolder files copies of outgoing mail into an IMAP mailbox. Plain SMTP
// submission does not do this on its own, so without it messages sent by
// Helix never show up in the recruiter's mail client.
type SentFolder struct {
	cfg     config.IMAPConfig
	useTLS  bool
	timeout time.Duration
	log     *logging.Logger
}

// NewSentFolder creates a SentFolder. Missing credentials are taken from
// the SMTP settings.
func NewSentFolder(cfg config.IMAPConfig, smtpCfg config.SMTPConfig, log *logging.Logger) *SentFolder {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "Sent"
	}
	if cfg.Username == "" {
		cfg.Username = smtpCfg.Username
	}
	if cfg.Password == "" {
		cfg.Password = smtpCfg.Password
	}
	return &SentFolder{
		cfg:     cfg,
		useTLS:  cfg.Port == 993,
		timeout: 30 * time.Second,
		log:     log.Sub("imap"),
	}
}

// Append stores msg in the configured mailbox with the \Seen flag.
func (s *SentFolder) Append(ctx context.Context, msg []byte) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := c.Append(s.cfg.Mailbox, []string{imap.SeenFlag}, time.Now(), bytes.NewBuffer(msg)); err != nil {
		return fmt.Errorf("imap append to %s: %w", s.cfg.Mailbox, err)
	}
	s.log.Debug().Str("mailbox", s.cfg.Mailbox).Int("bytes", len(msg)).Msg("sent copy stored")
	return nil
}

func (s *SentFolder) connect(ctx context.Context) (*client.Client, error) {
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var (
		c   *client.Client
		err error
	)
	if s.useTLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: s.cfg.Server})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	c.Timeout = s.timeout

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}
