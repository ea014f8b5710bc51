//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest runs one fetch-normalize-upsert cycle and turns its
// outcome into a structured Response.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/feed"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
	"github.com/pgEdge/pgedge-stock-ingest/internal/stock"
	"github.com/pgEdge/pgedge-stock-ingest/internal/store"
)

// Fetcher downloads the feed. *feed.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (*feed.Payload, error)
}

// Connector hands out the shared database connection. *db.Manager
// satisfies it.
type Connector interface {
	Acquire(ctx context.Context) (db.Conn, error)
}

// Result summarizes a successful invocation.
type Result struct {
	Fetched int
	Written int
	Skipped []stock.Skip
}

// Ingester runs invocations. One Ingester may be reused across
// invocations; the Connector decides whether the connection is reused.
type Ingester struct {
	fetcher   Fetcher
	connector Connector
	upsert    func(ctx context.Context, conn db.DB, records []stock.Summary) (int, error)
	now       func() time.Time
}

// New creates an Ingester.
func New(fetcher Fetcher, connector Connector) *Ingester {
	return &Ingester{
		fetcher:   fetcher,
		connector: connector,
		upsert:    store.Upsert,
		now:       time.Now,
	}
}

// Run performs one invocation. It never returns an error: every failure
// is classified into the Response.
func (in *Ingester) Run(ctx context.Context) (resp Response) {
	log := logging.With("invocation_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			resp = in.fail(log, fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := in.run(ctx, log)
	if err != nil {
		return in.fail(log, err)
	}

	log.Info().
		Int("records_processed", res.Written).
		Int("records_skipped", len(res.Skipped)).
		Msgf("Successfully processed %d stock records", res.Written)

	return successResponse(res.Written, len(res.Skipped), in.now())
}

func (in *Ingester) run(ctx context.Context, log zerolog.Logger) (Result, error) {
	payload, err := in.fetcher.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	log.Info().
		Int("records", len(payload.Data)).
		Msgf("Successfully fetched %d records from IDX", len(payload.Data))

	conn, err := in.connector.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}

	batch := stock.NormalizeAll(payload.Data)
	for i := range batch.Skipped {
		skip := &batch.Skipped[i]
		log.Warn().
			Int("index", skip.Index).
			Str("stock_code", skip.StockCode).
			Err(skip.Cause).
			Msg("Skipping record due to error")
	}

	res := Result{Fetched: len(payload.Data), Skipped: batch.Skipped}
	if len(batch.Records) == 0 {
		log.Warn().Msg("No valid records in feed; nothing to write")
		return res, nil
	}

	written, err := in.upsert(ctx, conn, batch.Records)
	if err != nil {
		return Result{}, err
	}
	res.Written = written
	return res, nil
}

func (in *Ingester) fail(log zerolog.Logger, err error) Response {
	e := Classify(err)
	log.Error().
		Err(e.Internal).
		Str("kind", e.Kind.String()).
		Int("status", e.StatusCode).
		Msg(e.Message)
	return errorResponse(e)
}
