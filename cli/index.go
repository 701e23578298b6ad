package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/ipc"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Force a full re-index of a project",
	Long: `Index every file under the given directory right away, without
waiting for filesystem events. Useful after cloning a repository or when
the index looks stale.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var detectRootCmd = &cobra.Command{
	Use:   "root [path]",
	Short: "Detect the project root containing a path",
	Long: `Walk upward from the given path (default: the current directory)
until a directory with a project marker is found, and print it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetectRoot,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(detectRootCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("Indexing %s...\n", path)
	client := ipc.NewClient(cfg.SocketPath())
	if _, err := client.Do(&ipc.Request{Type: ipc.RequestForceIndex, Path: path}); err != nil {
		return err
	}

	fmt.Println("Done.")
	return nil
}

func runDetectRoot(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	} else {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	resp, err := client.Do(&ipc.Request{Type: ipc.RequestDetectRoot, Path: path})
	if err != nil {
		return err
	}

	if resp.Root == nil {
		return fmt.Errorf("no project root found above %s", path)
	}
	fmt.Println(*resp.Root)
	return nil
}
