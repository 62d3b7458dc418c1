package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartikay/folio/internal/daemon"
)

var (
	servePort      int
	serveNoGateway bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the folio daemon",
	Long: `Run the folio daemon in the foreground.
The daemon arms persisted tasks, serves the WebSocket and HTTP gateway and
stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gateway port, overrides the config file")
	serveCmd.Flags().BoolVar(&serveNoGateway, "no-gateway", false, "run scheduled tasks without the gateway")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()
	defer shutdownTracing()

	if servePort > 0 {
		cfg.Gateway.Port = servePort
	}

	pidFile := daemon.PIDFilePath(cfg.DataDir)
	if daemon.IsRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	d, err := daemon.New(cfg, log, daemon.Options{
		Gateway: !serveNoGateway,
		PIDFile: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	return d.Run(cmd.Context())
}
