//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package store writes stock summaries to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
	"github.com/pgEdge/pgedge-stock-ingest/internal/stock"
)

// UpsertSQL inserts one summary or, when (stock_code, date) already exists,
// overwrites every mutable column and refreshes updated_at.
var UpsertSQL = buildUpsertSQL()

func buildUpsertSQL() string {
	placeholders := make([]string, len(stock.Columns))
	var updates []string
	for i, col := range stock.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col == "stock_code" || col == "date" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, "updated_at = CURRENT_TIMESTAMP")

	return "INSERT INTO " + db.SummaryTable + " (" + strings.Join(stock.Columns, ", ") + ")\n" +
		"VALUES (" + strings.Join(placeholders, ", ") + ")\n" +
		"ON CONFLICT (stock_code, date) DO UPDATE SET\n    " +
		strings.Join(updates, ",\n    ")
}

// Upsert writes records in a single transaction. Either every record is
// committed or, on any error, the transaction is rolled back. It returns
// the number of records written. All errors are *db.Error.
func Upsert(ctx context.Context, conn db.DB, records []stock.Summary) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, &db.Error{Op: "begin", Err: err}
	}
	// No-op once committed.
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logging.Warn().Err(rbErr).Msg("Rollback failed")
		}
	}()

	batch := &pgx.Batch{}
	for i := range records {
		batch.Queue(UpsertSQL, records[i].Values()...)
	}

	if err := sendBatch(ctx, tx, batch, records); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &db.Error{Op: "commit", Err: err}
	}

	logging.Debug().
		Int("records", len(records)).
		Msg("Committed stock summaries")

	return len(records), nil
}

// sendBatch executes the queued statements. The batch results are always
// closed before returning.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, records []stock.Summary) (err error) {
	br := tx.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = &db.Error{Op: "upsert", Err: cerr}
		}
	}()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return &db.Error{
				Op:  "upsert " + records[i].IDStock,
				Err: err,
			}
		}
	}
	return nil
}
