package outreach

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// SMTPMailer submits mail over SMTP. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	dialer *net.Dialer
	now    func() time.Time
	log    *logging.Logger

	// Sent, when set, receives a copy of every delivered message.
	Sent *SentFolder
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg config.SMTPConfig, log *logging.Logger) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
		now:    time.Now,
		log:    log.Sub("smtp"),
	}
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

// Send delivers e and then files a copy in the sent folder if one is
// configured. A failed copy is logged, not returned.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if m.cfg.Server == "" {
		return errors.New("smtp server not configured")
	}
	from := m.from()
	msg := compose(from, e, m.now())

	start := time.Now()
	if err := m.deliver(ctx, from, e.To, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", e.To, err)
	}
	m.log.Info().Str("to", e.To).Dur("elapsed", time.Since(start)).Msg("email sent")

	if m.Sent != nil {
		if err := m.Sent.Append(ctx, msg); err != nil {
			m.log.Warn().Err(err).Msg("saving sent copy failed")
		}
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, from, to string, msg []byte) error {
	host := m.cfg.Server
	addr := net.JoinHostPort(host, strconv.Itoa(m.cfg.Port))
	implicitTLS := m.cfg.Port == 465

	var (
		conn net.Conn
		err  error
	)
	if implicitTLS {
		td := &tls.Dialer{NetDialer: m.dialer, Config: &tls.Config{ServerName: host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = m.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if !implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if m.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(bareAddress(from)); err != nil {
		return err
	}
	if err := c.Rcpt(bareAddress(to)); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// bareAddress strips a display name, leaving the addr-spec.
func bareAddress(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}
