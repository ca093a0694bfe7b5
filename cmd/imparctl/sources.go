package main

import (
	"context"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List stored sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sources, err := newClient().Sources(context.Background())
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			cmd.Println("No sources stored.")
			return nil
		}
		for _, s := range sources {
			cmd.Println(s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
