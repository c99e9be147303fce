package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every record from the index",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if !clearYes {
		fmt.Print("This deletes all indexed records. Continue? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return nil
		}
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.manager.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("index cleared")
	return nil
}
