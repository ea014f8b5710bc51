// Package main is the entry point for pgedge-stock-ingest.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pgEdge/pgedge-stock-ingest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// The response document has already been printed.
		if !errors.Is(err, cli.ErrInvocationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
