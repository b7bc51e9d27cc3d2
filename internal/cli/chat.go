package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/helix/internal/agent"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		once      string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: "Starts an interactive conversation. Type /sequence to show the current " +
			"sequence and /quit to leave.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = "cli:" + uuid.NewString()
			}
			out := cmd.OutOrStdout()

			if once != "" {
				printResult(cmd, a.service.HandleMessage(ctx, sessionID, once, nil))
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render(cfg.Agent.Name))
			fmt.Fprintln(out, mutedStyle.Render("session "+sessionID))

			for {
				var input string
				err := survey.AskOne(&survey.Input{Message: "you:"}, &input)
				if errors.Is(err, terminal.InterruptErr) {
					return nil
				}
				if err != nil {
					return err
				}

				input = strings.TrimSpace(input)
				switch input {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/sequence":
					seq, err := a.service.Sequence(ctx, sessionID)
					if err != nil {
						fmt.Fprintln(out, errorStyle.Render(err.Error()))
						continue
					}
					fmt.Fprintln(out, renderSequence(seq))
					continue
				}

				printResult(cmd, a.service.HandleMessage(ctx, sessionID, input, nil))
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session (default: a new session)")
	cmd.Flags().StringVarP(&once, "message", "m", "", "send one message, print the reply and exit")

	return cmd
}

// printResult writes the assistant reply, the updated sequence when the
// turn changed it, and the failure kind to stderr.
func printResult(cmd *cobra.Command, res *agent.ProcessResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, assistantStyle.Render(res.ChatResponse))
	if res.Sequence != nil {
		fmt.Fprintln(out, renderSequence(res.Sequence))
	}
	if res.Status == agent.StatusError {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(fmt.Sprintf("[%s] %s", res.ErrorKind, res.Error)))
	}
}
