package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kartikay/folio/internal/daemon"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

var (
	toolArgs    string
	toolYes     bool
	toolSession string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call agent tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE:  runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Call a tool directly",
	Long: `Call a tool with a JSON argument object, as the model would.
Tools that need confirmation prompt for approval unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsCall,
}

func init() {
	toolsCallCmd.Flags().StringVar(&toolArgs, "args", "{}", "tool arguments as a JSON object")
	toolsCallCmd.Flags().BoolVar(&toolYes, "yes", false, "approve confirmation-required tools without prompting")
	toolsCallCmd.Flags().StringVar(&toolSession, "session", "", "session key (default is the configured agent id)")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log, daemon.Options{Approver: toolexecutor.DenyAllHandler{}})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer d.Scheduler().Stop()

	out := cmd.OutOrStdout()
	for _, def := range d.Tools().Definitions() {
		if !d.Policy().IsToolAllowed(def.Name) {
			continue
		}
		marker := ""
		if def.RequiresConfirmation() {
			marker = " (requires confirmation)"
		}
		fmt.Fprintf(out, "%-22s %s%s\n", def.Name, def.Description, marker)
	}

	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(toolArgs), &params); err != nil {
		return fmt.Errorf("invalid --args: %w", err)
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	var approver toolexecutor.ApprovalHandler = toolexecutor.AutoApprovalHandler{}
	if !toolYes {
		approver = toolexecutor.NewCLIApprovalHandler(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	d, err := daemon.New(cfg, log, daemon.Options{Approver: approver})
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

	session := toolSession
	if session == "" {
		session = cfg.Agent.ID
	}

	result := d.CallTool(ctx, session, args[0], params)
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(toolexecutor.Render(result), "\n"))

	if !result.Success {
		return fmt.Errorf("tool %s failed (%s)", args[0], result.Error.Kind)
	}
	return nil
}
