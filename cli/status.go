package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/daemon"
	"github.com/yoanbernabeu/indexd/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and index status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	status, err := client.Status()
	if err != nil {
		pid, pidErr := daemon.GetRunningPID(config.ConfigDir())
		if pidErr == nil && pid == 0 {
			fmt.Println("Status: not running")
			fmt.Println("Start the daemon with: indexd serve --background")
			return nil
		}
		return err
	}

	fmt.Println("Status: running")
	fmt.Printf("Uptime:        %s\n", (time.Duration(status.UptimeSecs) * time.Second).String())
	fmt.Printf("Documents:     %d\n", status.DocumentCount)
	fmt.Printf("Storage:       %.1f MB\n", float64(status.StorageBytes)/(1024*1024))
	fmt.Printf("Index quality: %.0f%%\n", status.IndexQuality*100)
	fmt.Printf("Throttle:      %s\n", status.ThrottleState)

	if len(status.Projects) == 0 {
		fmt.Println("\nNo projects watched. Add one with: indexd watch <path>")
		return nil
	}

	fmt.Printf("\nWatched projects (%d):\n", len(status.Projects))
	for _, p := range status.Projects {
		lastIndexed := "never"
		if p.LastIndexedSecsAgo >= 0 {
			lastIndexed = fmt.Sprintf("%s ago", (time.Duration(p.LastIndexedSecsAgo) * time.Second).String())
		}
		fmt.Printf("  %s\n", p.Path)
		fmt.Printf("    files: %d  quality: %.0f%%  last indexed: %s\n",
			p.FileCount, p.Quality*100, lastIndexed)
	}

	return nil
}
