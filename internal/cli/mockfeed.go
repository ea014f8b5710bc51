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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-stock-ingest/internal/mockfeed"
)

var (
	mockAddr      string
	mockItems     int
	mockSeed      uint64
	mockMalformed float64
)

var mockFeedCmd = &cobra.Command{
	Use:   "mock-feed",
	Short: "Serve a synthetic stock summary feed",
	Long: `Serve a synthetic stock summary feed for local end-to-end runs. Point
run or schedule at it with --feed-url.

Besides the feed itself the server exposes /empty, /garbage,
/status/<code> and /slow?delay=<duration> to exercise error handling.

Example:
  pgedge-stock-ingest mock-feed --items 900 --seed 42
  pgedge-stock-ingest run --feed-url http://127.0.0.1:8089/`,
	RunE: runMockFeed,
}

func init() {
	mockFeedCmd.Flags().StringVar(&mockAddr, "addr", "",
		"listen address (default: 127.0.0.1:8089)")
	mockFeedCmd.Flags().IntVar(&mockItems, "items", 0,
		"items per feed")
	mockFeedCmd.Flags().Uint64Var(&mockSeed, "seed", 0,
		"seed for reproducible feeds (0 = random)")
	mockFeedCmd.Flags().Float64Var(&mockMalformed, "malformed", 0,
		"fraction of items that fail normalization")
}

func runMockFeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if mockAddr != "" {
		cfg.Mock.Addr = mockAddr
	}
	if mockItems > 0 {
		cfg.Mock.Items = mockItems
	}
	if mockSeed != 0 {
		cfg.Mock.Seed = mockSeed
	}
	if mockMalformed > 0 {
		cfg.Mock.Malformed = mockMalformed
	}

	if cfg.Mock.Malformed > 1 {
		return fmt.Errorf("malformed fraction must be between 0 and 1")
	}

	ctx, cancel := signalContext()
	defer cancel()

	return mockfeed.New(cfg.Mock).Run(ctx)
}
