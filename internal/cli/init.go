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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
)

var initDropExisting bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the stock_summary table",
	Long: `Create the stock_summary table with its (stock_code, date) unique
constraint if it does not exist. This is a convenience for development
databases; it does not migrate existing tables.

Example:
  pgedge-stock-ingest init
  pgedge-stock-ingest init --drop-existing`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop the existing table before creating it")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Validate configuration
	if err := cfg.Database.Validate(); err != nil {
		return err
	}

	logging.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("Initializing database")

	ctx := context.Background()
	manager := db.NewManager(cfg.Database)
	defer closeManager(manager)

	conn, err := manager.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	exists, err := db.TableExists(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to check for %s: %w", db.SummaryTable, err)
	}

	if exists && initDropExisting {
		logging.Warn().Str("table", db.SummaryTable).Msg("Dropping existing table")
		if err := db.DropSchema(ctx, conn); err != nil {
			return fmt.Errorf("failed to drop %s: %w", db.SummaryTable, err)
		}
	} else if exists {
		logging.Info().Str("table", db.SummaryTable).Msg("Table already exists")
	}

	return db.CreateSchema(ctx, conn)
}
