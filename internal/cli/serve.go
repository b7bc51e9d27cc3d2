package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/channel/irc"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/gateway"
	"github.com/soyeahso/helix/internal/routing"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Start the gateway server and chat channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			channels := channel.NewRegistry(a.log)
			if cfg.Channels.IRC != nil {
				channels.Register(irc.New(*cfg.Channels.IRC, a.log))
			}

			srv := gateway.New(cfg, a.log,
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(a.hooks),
				gateway.WithService(a.service),
				gateway.WithChannels(channels),
				gateway.WithTurnTimeout(turnTimeout(cfg)),
			)

			var g errgroup.Group
			g.Go(func() error {
				defer stop()
				return srv.Start(ctx)
			})

			if channels.Count() > 0 {
				scope := ""
				if cfg.Channels.IRC != nil {
					scope = cfg.Channels.IRC.SessionScope
				}
				router := routing.NewRouter(channels, a.service, scope, a.log)
				router.Wire(ctx)
				a.log.Info().
					Int("channels", channels.Count()).
					Str("scope", scope).
					Msg("message routing active")

				// A channel failure is logged and never takes the gateway down.
				g.Go(func() error {
					if err := channels.Run(ctx); err != nil {
						a.log.Error().Err(err).Msg("channels stopped with errors")
					}
					return nil
				})
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					channels.StopAll(stopCtx)
				}()
			}

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// turnTimeout bounds one chat turn: a few model calls plus store access.
func turnTimeout(cfg config.Config) time.Duration {
	d := 5 * time.Duration(cfg.Agent.CallTimeoutSeconds) * time.Second
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
