//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
)

// SummaryTable is the table the ingest writes to.
const SummaryTable = "stock_summary"

// createSchemaSQL creates the stock_summary table if it doesn't exist.
// The unique constraint on (stock_code, date) is the upsert conflict target.
const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS stock_summary (
    id                    BIGSERIAL PRIMARY KEY,
    id_stock              VARCHAR(64) NOT NULL,
    stock_code            VARCHAR(32) NOT NULL,
    date                  DATE NOT NULL,
    stock_name            VARCHAR(255),
    remarks               TEXT,
    previous              NUMERIC NOT NULL DEFAULT 0,
    open_price            NUMERIC NOT NULL DEFAULT 0,
    first_trade           NUMERIC NOT NULL DEFAULT 0,
    high                  NUMERIC NOT NULL DEFAULT 0,
    low                   NUMERIC NOT NULL DEFAULT 0,
    close                 NUMERIC NOT NULL DEFAULT 0,
    change                NUMERIC NOT NULL DEFAULT 0,
    volume                NUMERIC NOT NULL DEFAULT 0,
    value                 NUMERIC NOT NULL DEFAULT 0,
    frequency             NUMERIC NOT NULL DEFAULT 0,
    index_individual      NUMERIC NOT NULL DEFAULT 0,
    offer                 NUMERIC NOT NULL DEFAULT 0,
    offer_volume          NUMERIC NOT NULL DEFAULT 0,
    bid                   NUMERIC NOT NULL DEFAULT 0,
    bid_volume            NUMERIC NOT NULL DEFAULT 0,
    listed_shares         NUMERIC NOT NULL DEFAULT 0,
    tradeable_shares      NUMERIC NOT NULL DEFAULT 0,
    weight_for_index      NUMERIC NOT NULL DEFAULT 0,
    foreign_sell          NUMERIC NOT NULL DEFAULT 0,
    foreign_buy           NUMERIC NOT NULL DEFAULT 0,
    delisting_date        DATE,
    non_regular_volume    NUMERIC NOT NULL DEFAULT 0,
    non_regular_value     NUMERIC NOT NULL DEFAULT 0,
    non_regular_frequency NUMERIC NOT NULL DEFAULT 0,
    created_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT stock_summary_stock_code_date_key UNIQUE (stock_code, date)
);

CREATE INDEX IF NOT EXISTS idx_stock_summary_date ON stock_summary(date);
`

// CreateSchema creates the stock_summary table and its indexes.
func CreateSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("failed to create %s: %w", SummaryTable, err)
	}
	logging.Info().Str("table", SummaryTable).Msg("Schema ready")
	return nil
}

// DropSchema drops the stock_summary table.
func DropSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+SummaryTable+" CASCADE")
	return err
}

// TableExists checks if the stock_summary table exists.
func TableExists(ctx context.Context, db DB) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, SummaryTable).Scan(&exists)
	return exists, err
}
