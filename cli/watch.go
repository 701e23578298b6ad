package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/ipc"
)

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watch a project directory for changes",
	Long: `Register a project with the daemon and watch it for filesystem
changes. New and modified files are re-indexed automatically; deletions
drop their chunks from the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchProject,
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <path>",
	Short: "Stop watching a project directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnwatchProject,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(unwatchCmd)
}

func runWatchProject(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	if _, err := client.Do(&ipc.Request{Type: ipc.RequestWatch, Path: path}); err != nil {
		return err
	}

	fmt.Printf("Watching %s\n", path)
	return nil
}

func runUnwatchProject(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	if _, err := client.Do(&ipc.Request{Type: ipc.RequestUnwatch, Path: path}); err != nil {
		return err
	}

	fmt.Printf("Stopped watching %s\n", path)
	return nil
}
