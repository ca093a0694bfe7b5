package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8000"

var (
	apiURL     string
	httpClient = &http.Client{Timeout: 5 * time.Minute}
)

var rootCmd = &cobra.Command{
	Use:           "imparctl",
	Short:         "Command line client for the impar ingestion API",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	def := os.Getenv("IMPAR_API_URL")
	if def == "" {
		def = defaultAPIURL
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", def, "base URL of the impar API (env IMPAR_API_URL)")
}

func Execute() error {
	return rootCmd.Execute()
}

func newClient() *Client {
	return NewClient(apiURL, httpClient)
}
