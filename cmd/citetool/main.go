// Package main provides the citetool command-line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/helixir/citation-index-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
