package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/wiregate/internal/config"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running wiregate server",
	Long: `Stop a running wiregate server by reading its PID file and asking it
to shut down. The server drains its workers before exiting.

The PID file is server.pid_file from the config, or ~/.wiregate/server.pid.

Examples:
  wiregate stop
  wiregate stop --wait 1m`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 40*time.Second, "how long to wait for the server to exit")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return stopServer(cmd, pidFilePath(cfg.Server.PIDFile), stopWait)
}

func stopServer(cmd *cobra.Command, pidPath string, wait time.Duration) error {
	errOut := cmd.ErrOrStderr()

	pid := readPIDFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("no server PID file found at %s\nIs the server running?", pidPath)
	}
	if !alive(pid) {
		_ = os.Remove(pidPath)
		return fmt.Errorf("server process %d is not running (stale PID file removed)", pid)
	}

	fmt.Fprintf(errOut, "Stopping wiregate server (PID %d)...\n", pid)
	if err := requestStop(pid); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		if !alive(pid) {
			_ = os.Remove(pidPath)
			fmt.Fprintln(errOut, "Server stopped.")
			return nil
		}
	}
	return fmt.Errorf("server process %d still running after %s", pid, wait)
}
