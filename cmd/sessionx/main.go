// Package main provides the entry point for sessionx, a command-line client
// for envelope APIs that refreshes expired credentials transparently.
package main

import (
	"fmt"
	"os"

	"github.com/AmmannChristian/go-sessionx/internal/cli"
)

func main() {
	app := cli.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
