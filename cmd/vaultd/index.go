package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every document in the vault and flush to the backend",
	Long: `Index walks the vault, chunks and embeds every document, and writes
the records to the vector backend.

Examples:
  vaultd index --vault ~/notes
  vaultd index --vault ~/notes --config ~/.config/vaultd/config.yaml`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	indexed, err := a.indexAll(ctx)
	if err != nil {
		return err
	}

	count, err := a.backend.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d files, %d records in backend\n", indexed, count)
	return nil
}
