package main

import (
	"context"

	"github.com/spf13/cobra"
)

var scrapeQueue bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape a web page into the knowledge base",
	Long: `Fetches a page, extracts its visible text and stores it. Without a URL
the server's configured default page is used. Pages already stored are
skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeQueue, "queue", false, "hand the page to the background worker and return immediately")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 1 {
		target = args[0]
	}

	res, err := newClient().Scrape(context.Background(), target, scrapeQueue)
	if err != nil {
		return err
	}

	cmd.Printf("%s %s\n", res.Source, res.Message)
	if res.ChunksAdded > 0 {
		cmd.Printf("Chunks added: %d\n", res.ChunksAdded)
	}
	return nil
}
