package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/daemon"
	"github.com/yoanbernabeu/indexd/ipc"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	stateDir := config.ConfigDir()

	pid, err := daemon.GetRunningPID(stateDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}
	if pid == 0 {
		fmt.Println("No daemon is running")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("Stopping indexd (PID %d)...\n", pid)

	// Ask nicely over IPC first so in-flight requests finish; fall back to a
	// signal when the socket is unresponsive.
	client := ipc.NewClient(cfg.SocketPath())
	if _, err := client.Do(&ipc.Request{Type: ipc.RequestShutdown}); err != nil {
		if err := daemon.StopProcess(pid); err != nil {
			return fmt.Errorf("failed to stop process: %w", err)
		}
	}

	const shutdownTimeout = 30 * time.Second
	const pollInterval = 500 * time.Millisecond
	deadline := time.Now().Add(shutdownTimeout)
	lastProgress := time.Now()

	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			break
		}
		if time.Since(lastProgress) >= 5*time.Second {
			fmt.Println("Waiting for graceful shutdown...")
			lastProgress = time.Now()
		}
		time.Sleep(pollInterval)
	}

	if daemon.IsProcessRunning(pid) {
		return fmt.Errorf("process did not stop within %v\nStill running? Try: kill -9 %d\nOr check logs at: %s",
			shutdownTimeout, pid, daemon.LogPath(stateDir))
	}

	_ = daemon.RemovePIDFile(stateDir)
	fmt.Println("Daemon stopped")
	return nil
}
