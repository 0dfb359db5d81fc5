// Command scrapectl runs a single listing or similar-listings scrape and
// prints the result as JSON.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
