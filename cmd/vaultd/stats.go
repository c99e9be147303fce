package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache, queue, and backend counters",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := json.MarshalIndent(a.manager.Stats(ctx), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
