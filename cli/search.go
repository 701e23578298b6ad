package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/indexd/config"
	"github.com/yoanbernabeu/indexd/ipc"
)

var (
	searchLimit int
	searchJSON  bool
	searchTOON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed projects with natural language",
	Long: `Search every indexed project using a natural language query.

The daemon vectorizes the query, runs a nearest-neighbor scan over the
index, and returns the closest chunks with file path, line number, and a
short snippet.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results to return")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results in JSON format (for AI agents)")
	searchCmd.Flags().BoolVarP(&searchTOON, "toon", "t", false, "Output results in TOON format (token-efficient for AI agents)")
	searchCmd.MarkFlagsMutuallyExclusive("json", "toon")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := ipc.NewClient(cfg.SocketPath())
	results, err := client.Search(query, searchLimit)
	if err != nil {
		if searchJSON {
			return outputSearchErrorJSON(err)
		}
		if searchTOON {
			return outputSearchErrorTOON(err)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	if searchTOON {
		output, err := gotoon.Encode(results)
		if err != nil {
			return fmt.Errorf("failed to encode TOON: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %q\n\n", len(results), query)

	for i, result := range results {
		fmt.Printf("─── Result %d (score: %.4f) ───\n", i+1, result.Score)
		fmt.Printf("File: %s:%d\n", result.Path, result.Line)
		if result.HeaderContext != "" {
			fmt.Printf("Context: %s\n", result.HeaderContext)
		}
		fmt.Println()

		lineNum := result.Line
		for _, line := range strings.Split(result.Snippet, "\n") {
			fmt.Printf("%4d │ %s\n", lineNum, line)
			lineNum++
		}
		fmt.Println()
	}

	return nil
}

// outputSearchErrorJSON outputs an error in JSON format
func outputSearchErrorJSON(err error) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(map[string]string{"error": err.Error()})
	return nil
}

// outputSearchErrorTOON outputs an error in TOON format
func outputSearchErrorTOON(err error) error {
	output, encErr := gotoon.Encode(map[string]string{"error": err.Error()})
	if encErr != nil {
		return fmt.Errorf("failed to encode TOON error: %w", encErr)
	}
	fmt.Println(output)
	return nil
}
