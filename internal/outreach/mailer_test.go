package outreach

import (
	"context"
	"net"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type smtpCapture struct {
	from string
	to   string
	data string
}

// startSMTP runs a single-session SMTP server that accepts one message.
func startSMTP(t *testing.T) (host string, port int, got <-chan smtpCapture) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan smtpCapture, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)

		var c smtpCapture
		tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "EHLO"):
				tp.PrintfLine("250-localhost")
				tp.PrintfLine("250 HELP")
			case strings.HasPrefix(upper, "MAIL FROM:"):
				c.from = line[len("MAIL FROM:"):]
				tp.PrintfLine("250 OK")
			case strings.HasPrefix(upper, "RCPT TO:"):
				c.to = line[len("RCPT TO:"):]
				tp.PrintfLine("250 OK")
			case upper == "DATA":
				tp.PrintfLine("354 end with <CRLF>.<CRLF>")
				b, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				c.data = string(b)
				tp.PrintfLine("250 queued")
			case upper == "QUIT":
				tp.PrintfLine("221 bye")
				ch <- c
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, ch
}

// startIMAP serves the go-imap memory backend (user "username", password
// "password", one message in INBOX).
func startIMAP(t *testing.T) (host string, port int) {
	t.Helper()
	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

func inboxCount(t *testing.T, host string, port int) uint32 {
	t.Helper()
	c, err := client.Dial(net.JoinHostPort(host, strconv.Itoa(port)))
	require.NoError(t, err)
	defer c.Logout()
	require.NoError(t, c.Login("username", "password"))

	status, err := c.Status("INBOX", []imap.StatusItem{imap.StatusMessages})
	require.NoError(t, err)
	return status.Messages
}

func TestEmailValidate(t *testing.T) {
	tests := []struct {
		name  string
		email Email
		ok    bool
	}{
		{"complete", Email{To: "a@example.com", Subject: "Hi", Body: "Hello"}, true},
		{"no recipient", Email{Subject: "Hi", Body: "Hello"}, false},
		{"no subject", Email{To: "a@example.com", Body: "Hello"}, false},
		{"blank body", Email{To: "a@example.com", Subject: "Hi", Body: "  "}, false},
		{"header injection", Email{To: "a@example.com", Subject: "Hi\r\nBcc: x@example.com", Body: "Hello"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.email.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	msg := string(compose("Talent <talent@example.com>", Email{To: "jane@example.com", Subject: "Senior Go role", Body: "Hi Jane,\nLet's talk."}, now))

	assert.Contains(t, msg, "From: Talent <talent@example.com>\r\n")
	assert.Contains(t, msg, "To: jane@example.com\r\n")
	assert.Contains(t, msg, "Subject: Senior Go role\r\n")
	assert.Contains(t, msg, "Date: Mon, 02 Mar 2026 09:00:00 +0000\r\n")
	assert.Contains(t, msg, "@example.com>\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nHi Jane,\r\nLet's talk."))
}

func TestCompose_EncodesNonASCIISubject(t *testing.T) {
	msg := string(compose("", Email{To: "a@example.com", Subject: "Café", Body: "x"}, time.Now()))
	assert.Contains(t, msg, "Subject: =?utf-8?q?Caf=C3=A9?=")
	assert.NotContains(t, msg, "From:")
}

func TestSMTPMailer_Send(t *testing.T) {
	host, port, got := startSMTP(t)
	m := NewSMTPMailer(config.SMTPConfig{Server: host, Port: port, From: "Talent <talent@example.com>"}, silentLog())

	err := m.Send(context.Background(), Email{To: "jane@example.com", Subject: "Senior Go role", Body: "Hi Jane"})
	require.NoError(t, err)

	select {
	case c := <-got:
		assert.Equal(t, "<talent@example.com>", c.from)
		assert.Equal(t, "<jane@example.com>", c.to)
		assert.Contains(t, c.data, "Subject: Senior Go role")
		assert.Contains(t, c.data, "Hi Jane")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPMailer_InvalidEmail(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Server: "127.0.0.1", Port: 1}, silentLog())
	err := m.Send(context.Background(), Email{To: "a@example.com"})
	assert.Error(t, err)
}

func TestSMTPMailer_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewSMTPMailer(config.SMTPConfig{Server: "127.0.0.1", Port: port}, silentLog())
	err = m.Send(context.Background(), Email{To: "a@example.com", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestSentFolder_Append(t *testing.T) {
	host, port := startIMAP(t)
	folder := NewSentFolder(
		config.IMAPConfig{Server: host, Port: port, Mailbox: "INBOX"},
		config.SMTPConfig{Username: "username", Password: "password"},
		silentLog(),
	)

	msg := compose("talent@example.com", Email{To: "jane@example.com", Subject: "Hello", Body: "Hi"}, time.Now())
	require.NoError(t, folder.Append(context.Background(), msg))

	assert.Equal(t, uint32(2), inboxCount(t, host, port))
}

func TestSentFolder_BadLogin(t *testing.T) {
	host, port := startIMAP(t)
	folder := NewSentFolder(
		config.IMAPConfig{Server: host, Port: port, Username: "username", Password: "wrong", Mailbox: "INBOX"},
		config.SMTPConfig{},
		silentLog(),
	)
	err := folder.Append(context.Background(), []byte("Subject: x\r\n\r\nbody"))
	assert.ErrorContains(t, err, "imap login")
}

func TestSMTPMailer_StoresSentCopy(t *testing.T) {
	smtpHost, smtpPort, got := startSMTP(t)
	imapHost, imapPort := startIMAP(t)

	m := NewSMTPMailer(config.SMTPConfig{Server: smtpHost, Port: smtpPort, From: "talent@example.com"}, silentLog())
	m.Sent = NewSentFolder(config.IMAPConfig{
		Server: imapHost, Port: imapPort, Username: "username", Password: "password", Mailbox: "INBOX",
	}, config.SMTPConfig{}, silentLog())

	require.NoError(t, m.Send(context.Background(), Email{To: "jane@example.com", Subject: "Hello", Body: "Hi"}))
	<-got
	assert.Equal(t, uint32(2), inboxCount(t, imapHost, imapPort))
}

func TestNewMailer(t *testing.T) {
	ctx := context.Background()

	m, err := NewMailer(ctx, config.EmailConfig{Provider: "none"}, silentLog())
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewMailer(ctx, config.EmailConfig{
		Provider: "smtp",
		SMTP:     config.SMTPConfig{Server: "smtp.example.com"},
		IMAP:     &config.IMAPConfig{Server: "imap.example.com"},
	}, silentLog())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "smtp", m.Name())
	assert.NotNil(t, m.(*SMTPMailer).Sent)

	_, err = NewMailer(ctx, config.EmailConfig{
		Provider: "gmail",
		Gmail:    config.GmailConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")},
	}, silentLog())
	assert.ErrorContains(t, err, "gmail credentials")

	_, err = NewMailer(ctx, config.EmailConfig{Provider: "carrier-pigeon"}, silentLog())
	assert.Error(t, err)
}

func TestGmailTokenPath(t *testing.T) {
	assert.Equal(t, "/tmp/tok.json", GmailTokenPath(config.GmailConfig{TokenFile: "/tmp/tok.json"}))
	assert.Equal(t, filepath.Join("/etc/helix", "gmail-token.json"), GmailTokenPath(config.GmailConfig{CredentialsFile: "/etc/helix/creds.json"}))
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	_, err := tokenFromFile(path)
	assert.Error(t, err)

	require.NoError(t, saveToken(path, &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}))
	tok, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
}
