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
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/feed"
	"github.com/pgEdge/pgedge-stock-ingest/internal/ingest"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
	"github.com/pgEdge/pgedge-stock-ingest/internal/scheduler"
)

var (
	scheduleCron       string
	scheduleTimezone   string
	scheduleRunOnStart bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingest invocations on a cron schedule",
	Long: `Run ingest invocations on a cron schedule until interrupted with
Ctrl+C. All invocations share one database connection, which is reopened
only when it has been closed. A tick is skipped while the previous
invocation is still running.

The default schedule is 17:30 Asia/Jakarta on weekdays, after the IDX
close.

Example:
  pgedge-stock-ingest schedule
  pgedge-stock-ingest schedule --cron "*/15 9-16 * * 1-5" --run-on-start`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "",
		"five-field cron expression")
	scheduleCmd.Flags().StringVar(&scheduleTimezone, "timezone", "",
		"IANA timezone the cron expression is evaluated in")
	scheduleCmd.Flags().BoolVar(&scheduleRunOnStart, "run-on-start", false,
		"run one invocation immediately")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if scheduleCron != "" {
		cfg.Schedule.Cron = scheduleCron
	}
	if scheduleTimezone != "" {
		cfg.Schedule.Timezone = scheduleTimezone
	}
	if scheduleRunOnStart {
		cfg.Schedule.RunOnStart = true
	}

	// Validate configuration
	if err := cfg.ValidateSchedule(); err != nil {
		return err
	}

	manager := db.NewManager(cfg.Database)
	defer closeManager(manager)

	s, err := scheduler.New(cfg.Schedule, ingest.New(feed.NewClient(cfg.Feed), manager))
	if err != nil {
		return err
	}

	logging.Info().
		Str("cron", cfg.Schedule.Cron).
		Str("feed_url", cfg.Feed.URL).
		Msg("Starting scheduled ingestion")

	ctx, cancel := signalContext()
	defer cancel()

	if err := s.Run(ctx); err != nil {
		return err
	}
	s.PrintSummary()
	return nil
}
