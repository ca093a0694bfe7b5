// Command imparctl talks to a running impar API: it uploads files, scrapes
// pages, searches the knowledge base and lists stored sources.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
