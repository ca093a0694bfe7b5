package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

var ingestSkipExisting bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Upload files to the knowledge base",
	Long: `Uploads one or more files as a single batch. PDF, CSV, Excel, images,
Word, PowerPoint, HTML, JSON, Markdown and text files are accepted.
The batch is all or nothing: one bad file rejects every file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSkipExisting, "skip-existing", false, "skip files whose source is already stored")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	res, err := newClient().Upload(context.Background(), args, ingestSkipExisting)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %s\n", res.Filename, res.Status)
	cmd.Printf("Chunks generated: %d\n", res.ChunksGenerated)
	if len(res.Skipped) > 0 {
		cmd.Printf("Skipped (already stored): %s\n", strings.Join(res.Skipped, ", "))
	}
	return nil
}
