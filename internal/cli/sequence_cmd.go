package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/sequence"
)

func newSequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and edit stored sequences",
	}

	cmd.PersistentFlags().String("session", "", "session id (required)")
	_ = cmd.MarkPersistentFlagRequired("session")

	cmd.AddCommand(newSequenceShowCmd())
	cmd.AddCommand(newSequenceEditCmd())
	cmd.AddCommand(newSequenceSaveCmd())
	return cmd
}

// withSequenceApp runs fn against an app that needs no model provider.
func withSequenceApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, sessionID string) (*domain.Sequence, error)) error {
	sessionID, _ := cmd.Flags().GetString("session")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	seq, err := fn(ctx, a, sessionID)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(seq)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSequence(seq))
	return nil
}

func newSequenceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the session's sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSequenceApp(cmd, func(ctx context.Context, a *app, sessionID string) (*domain.Sequence, error) {
				return a.service.Sequence(ctx, sessionID)
			})
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func newSequenceEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <step-id> <content>",
		Short: "Replace the content of one step",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args[1:], " "))
			return withSequenceApp(cmd, func(ctx context.Context, a *app, sessionID string) (*domain.Sequence, error) {
				return a.service.EditStep(ctx, sessionID, args[0], content)
			})
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func newSequenceSaveCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Replace the session's steps with a JSON step list",
		Long: "Reads a JSON array of steps ({id, type, content, delay}) from --file, " +
			"or stdin when --file is \"-\", and stores it as the session's sequence.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading steps: %w", err)
			}
			steps, err := sequence.ParseSteps(string(data))
			if err != nil {
				return err
			}
			return withSequenceApp(cmd, func(ctx context.Context, a *app, sessionID string) (*domain.Sequence, error) {
				return a.service.SaveSequence(ctx, sessionID, steps)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file with the steps")
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}
