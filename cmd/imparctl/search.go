package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchK      int
	searchSource string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored documents",
	Long: `Embeds the query and returns the closest chunks, optionally restricted
to a single source such as report.pdf or a scraped URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchK, "k", 4, "number of chunks to return")
	searchCmd.Flags().StringVarP(&searchSource, "source", "s", "", "only search this source")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	results, err := newClient().Search(context.Background(), args[0], searchK, searchSource)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range results {
		location := r.Location
		if location == "" {
			location = "General context"
		}
		cmd.Printf("[%d] %s | %s\n", i+1, r.Source, location)
		cmd.Println(r.Text)
		cmd.Println()
	}
	return nil
}
