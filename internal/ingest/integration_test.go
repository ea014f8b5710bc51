//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for a full ingest against PostgreSQL.
// Run with: go test -tags=integration ./internal/ingest/...
// Set STOCK_INGEST_TEST_CONN environment variable to override connection string.

package ingest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/feed"
	"github.com/pgEdge/pgedge-stock-ingest/internal/ingest"
	"github.com/pgEdge/pgedge-stock-ingest/internal/mockfeed"
	"github.com/pgEdge/pgedge-stock-ingest/internal/testutil"
)

type harness struct {
	tdb     *testutil.TestDB
	manager *db.Manager
	body    atomic.Value
	in      *ingest.Ingester
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	baseConnStr := testutil.SkipIfNoPostgres(t)

	h := &harness{tdb: testutil.CreateTestDB(t, baseConnStr)}
	h.manager = db.NewManager(h.tdb.Config)
	t.Cleanup(func() { _ = h.manager.Close(context.Background()) })

	ctx := context.Background()
	conn, err := h.manager.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(h.body.Load().(string)))
	}))
	t.Cleanup(srv.Close)

	client := feed.NewClient(config.FeedConfig{URL: srv.URL, Timeout: 5 * time.Second})
	h.in = ingest.New(client, h.manager)
	return h
}

func (h *harness) run(t *testing.T, body string) ingest.SuccessBody {
	t.Helper()
	h.body.Store(body)

	resp := h.in.Run(context.Background())
	if !resp.OK() {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	var sb ingest.SuccessBody
	if err := resp.Decode(&sb); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return sb
}

const feedV1 = `{"data": [
  {"Date": "2025-11-25T00:00:00", "StockCode": "BBCA", "StockName": "Bank Central Asia Tbk.", "Remarks": "", "Close": 8600, "Previous": 8550, "Volume": 123456700},
  {"Date": "2025-11-25T00:00:00", "StockCode": "BBRI", "StockName": "Bank Rakyat Indonesia (Persero) Tbk.", "Remarks": "--U-3100000000000000000000000", "Close": 3920.5},
  {"Date": "2025-11-25T00:00:00", "StockCode": "GOTO", "StockName": "GoTo Gojek Tokopedia Tbk.", "DelistingDate": "2030-01-31T00:00:00"},
  {"Date": "25/11/2025", "StockCode": "BAD1", "StockName": "Bad date"}
]}`

const feedV2 = `{"data": [
  {"Date": "2025-11-25T00:00:00", "StockCode": "BBCA", "StockName": "Bank Central Asia Tbk.", "Close": 8625}
]}`

func TestIngestRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sb := h.run(t, feedV1)
	if sb.RecordsProcessed != 3 || sb.RecordsSkipped != 1 {
		t.Fatalf("Expected 3 processed and 1 skipped, got %+v", sb)
	}
	if n := testutil.CountRows(t, h.tdb.Pool, db.SummaryTable); n != 3 {
		t.Fatalf("Expected 3 rows, got %d", n)
	}

	var (
		id      string
		closing string
		remarks *string
		delist  *time.Time
	)
	err := h.tdb.Pool.QueryRow(ctx, `
        SELECT id_stock, close::text, remarks, delisting_date
        FROM stock_summary WHERE stock_code = 'BBCA'
    `).Scan(&id, &closing, &remarks, &delist)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if id != "BBCA_2025-11-25" {
		t.Errorf("id_stock = %s", id)
	}
	if !strings.HasPrefix(closing, "8600") {
		t.Errorf("close = %s", closing)
	}
	if remarks != nil {
		t.Errorf("Expected NULL remarks, got %q", *remarks)
	}
	if delist != nil {
		t.Errorf("Expected NULL delisting_date, got %v", delist)
	}

	err = h.tdb.Pool.QueryRow(ctx,
		`SELECT delisting_date FROM stock_summary WHERE stock_code = 'GOTO'`).Scan(&delist)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if delist == nil || delist.Format("2006-01-02") != "2030-01-31" {
		t.Errorf("delisting_date = %v", delist)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, feedV1)

	var createdBefore, updatedBefore time.Time
	err := h.tdb.Pool.QueryRow(ctx,
		`SELECT created_at, updated_at FROM stock_summary WHERE stock_code = 'BBCA'`).
		Scan(&createdBefore, &updatedBefore)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	h.run(t, feedV1)
	if n := testutil.CountRows(t, h.tdb.Pool, db.SummaryTable); n != 3 {
		t.Fatalf("Expected 3 rows after rerun, got %d", n)
	}

	sb := h.run(t, feedV2)
	if sb.RecordsProcessed != 1 {
		t.Errorf("Expected 1 processed, got %d", sb.RecordsProcessed)
	}

	var (
		closing                  string
		remarks                  *string
		createdAfter, updatedAft time.Time
	)
	err = h.tdb.Pool.QueryRow(ctx, `
        SELECT close::text, remarks, created_at, updated_at
        FROM stock_summary WHERE stock_code = 'BBCA'
    `).Scan(&closing, &remarks, &createdAfter, &updatedAft)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !strings.HasPrefix(closing, "8625") {
		t.Errorf("Expected close to be overwritten, got %s", closing)
	}
	if !createdAfter.Equal(createdBefore) {
		t.Errorf("created_at changed: %v -> %v", createdBefore, createdAfter)
	}
	if updatedAft.Before(updatedBefore) {
		t.Errorf("updated_at went backwards: %v -> %v", updatedBefore, updatedAft)
	}
	if n := testutil.CountRows(t, h.tdb.Pool, db.SummaryTable); n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}
}

func TestIngestReconnectsAfterClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(t, feedV2)

	first, err := h.manager.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	h.run(t, feedV2)

	second, err := h.manager.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if second == first {
		t.Error("Expected a new connection after the previous one was closed")
	}
}

func TestIngestDatabaseFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	conn, err := h.manager.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := db.DropSchema(ctx, conn); err != nil {
		t.Fatalf("DropSchema failed: %v", err)
	}

	h.body.Store(feedV2)
	resp := h.in.Run(ctx)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "Database error: ") {
		t.Errorf("Body = %s", resp.Body)
	}

	// The connection stays usable after the failed transaction.
	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
	h.run(t, feedV2)
}

func TestIngestMockFeed(t *testing.T) {
	h := newHarness(t)

	srv := httptest.NewServer(mockfeed.New(config.MockConfig{Items: 300, Seed: 11, Malformed: 0.1}).Handler())
	defer srv.Close()

	client := feed.NewClient(config.FeedConfig{URL: srv.URL + "/?date=2025-11-25", Timeout: 10 * time.Second})
	resp := ingest.New(client, h.manager).Run(context.Background())
	if !resp.OK() {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var sb ingest.SuccessBody
	if err := resp.Decode(&sb); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if sb.RecordsProcessed+sb.RecordsSkipped != 300 {
		t.Errorf("Expected 300 items accounted for, got %+v", sb)
	}
	if n := testutil.CountRows(t, h.tdb.Pool, db.SummaryTable); n != sb.RecordsProcessed {
		t.Errorf("Expected %d rows, got %d", sb.RecordsProcessed, n)
	}
}
