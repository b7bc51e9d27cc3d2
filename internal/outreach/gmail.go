package outreach

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// GmailMailer sends through the Gmail API as the authorized user.
type GmailMailer struct {
	svc  *gmail.Service
	from string
	now  func() time.Time
	log  *logging.Logger
}

// NewGmailMailer loads OAuth client credentials and a previously saved
// token. Run "helix auth gmail" once to create the token.
func NewGmailMailer(ctx context.Context, cfg config.GmailConfig, log *logging.Logger) (*GmailMailer, error) {
	oc, err := GmailOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tokenPath := GmailTokenPath(cfg)
	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no gmail token at %s: run 'helix auth gmail' first", tokenPath)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewGmailMailerWithService(svc, cfg.From, log), nil
}

// NewGmailMailerWithService wraps an existing Gmail service.
func NewGmailMailerWithService(svc *gmail.Service, from string, log *logging.Logger) *GmailMailer {
	return &GmailMailer{svc: svc, from: from, now: time.Now, log: log.Sub("gmail")}
}

func (g *GmailMailer) Name() string { return "gmail" }

// Send submits e as a raw RFC 5322 message.
func (g *GmailMailer) Send(ctx context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	raw := compose(g.from, e, g.now())
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	sent, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", e.To, err)
	}
	g.log.Info().Str("to", e.To).Str("id", sent.Id).Msg("email sent")
	return nil
}

// GmailOAuthConfig reads the OAuth client credentials file.
func GmailOAuthConfig(cfg config.GmailConfig) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail credentials: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail credentials: %w", err)
	}
	return oc, nil
}

// GmailTokenPath is where the OAuth token is cached. It defaults to a file
// next to the credentials.
func GmailTokenPath(cfg config.GmailConfig) string {
	if cfg.TokenFile != "" {
		return cfg.TokenFile
	}
	return filepath.Join(filepath.Dir(cfg.CredentialsFile), "gmail-token.json")
}

// ExchangeGmailCode trades an authorization code for a token and caches it.
func ExchangeGmailCode(ctx context.Context, cfg config.GmailConfig, code string) error {
	oc, err := GmailOAuthConfig(cfg)
	if err != nil {
		return err
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return saveToken(GmailTokenPath(cfg), tok)
}

// GmailAuthURL returns the consent URL for offline access.
func GmailAuthURL(cfg config.GmailConfig) (string, error) {
	oc, err := GmailOAuthConfig(cfg)
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL("helix", oauth2.AccessTypeOffline), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("caching oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
