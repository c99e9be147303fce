// Vaultd indexes a directory of markdown notes into a vector store and
// serves semantic search over them.
//
// Usage:
//
//	# Serve the HTTP API and watch the vault for changes
//	vaultd serve --vault ~/notes
//
//	# One-shot index of every document in the vault
//	vaultd index --vault ~/notes
//
//	# Query from the command line
//	vaultd search "reciprocal rank fusion" --limit 5
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// vaultDir overrides the configured source root.
	vaultDir string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "vaultd",
	Short:   "Vector index and semantic search for a markdown vault",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "vault directory (overrides source.root)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}
