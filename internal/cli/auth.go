package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/outreach"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize outbound email providers",
	}
	cmd.AddCommand(newAuthGmailCmd())
	return cmd
}

func newAuthGmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail",
		Short: "Run the Gmail OAuth consent flow and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Email.Gmail.CredentialsFile == "" {
				return fmt.Errorf("email.gmail.credentialsFile is not set")
			}

			url, err := outreach.GmailAuthURL(cfg.Email.Gmail)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in a browser and approve access:")
			fmt.Fprintln(cmd.OutOrStdout(), url)

			var code string
			prompt := &survey.Input{Message: "Authorization code:"}
			if err := survey.AskOne(prompt, &code, survey.WithValidator(survey.Required)); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := outreach.ExchangeGmailCode(ctx, cfg.Email.Gmail, strings.TrimSpace(code)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", outreach.GmailTokenPath(cfg.Email.Gmail))
			return nil
		},
	}
}
