package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

var (
	searchLimit int
	searchTags  []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `Search embeds the query and returns the best-matching chunks.

Examples:
  vaultd search "reciprocal rank fusion"
  vaultd search "meeting notes" --limit 3 --tag project --tag work`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().StringArrayVar(&searchTags, "tag", nil, "only return chunks carrying at least one of these tags")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.manager.Search(ctx, args[0], vectorstore.SearchOptions{
		Limit: searchLimit,
		Tags:  searchTags,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s", i+1, r.Score, r.Metadata.FilePath)
		if r.Metadata.HeaderPath != "" {
			fmt.Printf("  (%s)", r.Metadata.HeaderPath)
		}
		fmt.Printf("  L%d-%d\n", r.Metadata.StartLine, r.Metadata.EndLine)

		snippet := r.Content
		if len(snippet) > 160 {
			snippet = snippet[:160] + "..."
		}
		fmt.Printf("    %s\n", strings.ReplaceAll(snippet, "\n", " "))
	}
	return nil
}
