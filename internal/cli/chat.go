package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kartikay/folio/internal/daemon"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long: `Start an interactive conversation with the agent.
Tools that need confirmation prompt for approval in the terminal.
Type "exit" or "quit" to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session key (default is the configured agent id)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()
	defer shutdownTracing()

	if !cfg.HasCredentials() {
		return fmt.Errorf("no API key configured for provider %s", cfg.Agent.Provider)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	d, err := daemon.New(cfg, log, daemon.Options{
		Approver: toolexecutor.NewCLIApprovalHandler(reader, out),
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	session := chatSession
	if session == "" {
		session = cfg.Agent.ID
	}

	fmt.Fprintf(out, "folio %s (session %s). Type \"exit\" to quit.\n", version, session)

	for {
		fmt.Fprint(out, "\n> ")

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		prompt := strings.TrimSpace(line)

		if prompt == "exit" || prompt == "quit" {
			return nil
		}
		if prompt != "" {
			result, chatErr := d.Manager().Chat(ctx, session, prompt)
			if chatErr != nil {
				fmt.Fprintf(out, "error: %v\n", chatErr)
			} else {
				fmt.Fprintln(out, result.Response)
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}
