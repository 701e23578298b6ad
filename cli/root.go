// Package cli wires the indexd commands. Every command except serve is a
// thin client talking to the daemon over its unix socket.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "indexd",
	Short: "Local code index daemon with semantic search",
	Long: `indexd keeps a semantic index of your local projects fresh in the
background and answers nearest-neighbor searches over a unix socket.

Start the daemon once:
  indexd serve --background

Then query it from anywhere:
  indexd search "where do we validate auth tokens"
  indexd status`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
