//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/feed"
	"github.com/pgEdge/pgedge-stock-ingest/internal/ingest"
)

// closeTimeout bounds closing the shared connection on exit.
const closeTimeout = 5 * time.Second

// ErrInvocationFailed is returned by run when the response is not a 200.
var ErrInvocationFailed = errors.New("invocation failed")

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the feed once and upsert it",
	Long: `Run a single ingest invocation: fetch the feed, normalize it, upsert
every valid item in one transaction and print the response document.

The exit status is 0 when the response status is 200 and 1 otherwise.

Example:
  pgedge-stock-ingest run
  pgedge-stock-ingest run --feed-url http://127.0.0.1:8089/`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0,
		"feed request timeout (default: 30s)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runTimeout > 0 {
		cfg.Feed.Timeout = runTimeout
	}

	// Database settings are checked on acquire so that a missing setting
	// is reported in the response.
	if err := cfg.ValidateFeed(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	manager := db.NewManager(cfg.Database)
	defer closeManager(manager)

	resp := ingest.New(feed.NewClient(cfg.Feed), manager).Run(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), string(resp.JSON()))
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", ErrInvocationFailed, resp.StatusCode)
	}
	return nil
}

func closeManager(m *db.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = m.Close(ctx)
}
