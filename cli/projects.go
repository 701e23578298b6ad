package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/ipc"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects known to the daemon",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan discovery roots for new projects",
	Long: `Walk the configured discovery roots looking for directories that
carry a project marker (go.mod, package.json, Cargo.toml, .git, ...) and
register them with the daemon.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(discoverCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	resp, err := client.Do(&ipc.Request{Type: ipc.RequestListProjects})
	if err != nil {
		return err
	}

	if len(resp.Projects) == 0 {
		fmt.Println("No projects registered.")
		fmt.Println("Run 'indexd discover' or 'indexd watch <path>' to add one.")
		return nil
	}

	fmt.Printf("Projects (%d):\n", len(resp.Projects))
	for _, p := range resp.Projects {
		marker := " "
		if p.IsWatching {
			marker = "*"
		}
		fmt.Printf("  %s %s (%s, accessed %s ago)\n",
			marker, p.Path, p.ProjectType,
			(time.Duration(p.LastAccessedSecsAgo) * time.Second).String())
	}
	fmt.Println("\n* = currently watched")
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	if _, err := client.Do(&ipc.Request{Type: ipc.RequestDiscoverProjects}); err != nil {
		return err
	}

	fmt.Println("Discovery complete. Run 'indexd projects' to see the result.")
	return nil
}
