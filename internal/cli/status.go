package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/gateway"
	"github.com/soyeahso/helix/internal/version"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Helix configuration and whether the gateway is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Helix %s (commit %s)\n\n", version.Version, version.ShortCommit())

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(out, "Config:  not found (using defaults)")
					cfg = config.Defaults()
				} else {
					fmt.Fprintf(out, "Config:  error loading: %v\n", err)
					return nil
				}
			}
			printConfigSummary(out, cfg)

			if addr == "" {
				addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)
			}
			health, err := fetchHealth(addr)
			if err != nil {
				fmt.Fprintf(out, "Gateway: not reachable at %s (%v)\n", addr, err)
			} else {
				fmt.Fprintf(out, "Gateway: %s version=%s clients=%d sessions=%d actions=%d uptime=%s\n",
					health.Status, health.Version, health.Clients, health.Sessions, health.Actions,
					(time.Duration(health.UptimeMs) * time.Millisecond).Round(time.Second))
				for _, ch := range health.Channels {
					fmt.Fprintf(out, "  %-8s running=%v connected=%v %s\n", ch.ChannelID, ch.Running, ch.Connected, ch.LastError)
				}
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "gateway base URL (default http://127.0.0.1:<gateway.port>)")
	return cmd
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "Agent:   name=%s model=%s fallbacks=%s guided=%v fastPath=%v\n",
		cfg.Agent.Name, cfg.Agent.Model, strings.Join(cfg.Agent.Fallbacks, ","),
		cfg.Agent.GuidedFlowEnabled(), cfg.Agent.FastPathEnabled())
	fmt.Fprintf(out, "Gateway: port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)
	fmt.Fprintf(out, "Store:   driver=%s\n", cfg.Store.Driver)
	fmt.Fprintf(out, "Session: scope=%s lock=%s\n", cfg.Session.SequenceScope, cfg.Session.Lock)
	fmt.Fprintf(out, "Email:   provider=%s\n", cfg.Email.Provider)

	if irc := cfg.Channels.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:     server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	} else {
		fmt.Fprintln(out, "IRC:     (not configured)")
	}
	fmt.Fprintln(out)
}

// fetchHealth asks a running gateway for its detailed health.
func fetchHealth(baseURL string) (*gateway.HealthResponse, error) {
	var health gateway.HealthResponse
	resp, err := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(3 * time.Second).
		SetHeader("User-Agent", version.UserAgent()).
		R().
		SetResult(&health).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}
	return &health, nil
}
