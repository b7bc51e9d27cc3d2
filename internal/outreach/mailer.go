package outreach

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// Email is a single personalized message to one candidate.
type Email struct {
	To      string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate reports a missing field.
func (e Email) Validate() error {
	switch {
	case strings.TrimSpace(e.To) == "":
		return errors.New("recipient email is required")
	case strings.TrimSpace(e.Subject) == "":
		return errors.New("subject is required")
	case strings.TrimSpace(e.Body) == "":
		return errors.New("body is required")
	}
	if strings.ContainsAny(e.To, "\r\n") || strings.ContainsAny(e.Subject, "\r\n") {
		return errors.New("header fields must not contain line breaks")
	}
	return nil
}

// Mailer delivers outreach email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
	Name() string
}

// NewMailer builds the mailer selected by cfg.Provider. It returns nil and
// no error when email delivery is disabled.
func NewMailer(ctx context.Context, cfg config.EmailConfig, log *logging.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "smtp":
		m := NewSMTPMailer(cfg.SMTP, log)
		if cfg.IMAP != nil {
			m.Sent = NewSentFolder(*cfg.IMAP, cfg.SMTP, log)
		}
		return m, nil
	case "gmail":
		g, err := NewGmailMailer(ctx, cfg.Gmail, log)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// compose renders an RFC 5322 plain-text message.
func compose(from string, e Email, now time.Time) []byte {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domainOf(from))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(normalizeNewlines(e.Body))
	return []byte(b.String())
}

func domainOf(addr string) string {
	addr = strings.Trim(addr, "<> ")
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.Trim(addr[i+1:], ">")
	}
	return "helix.local"
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
