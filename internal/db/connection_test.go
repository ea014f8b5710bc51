//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
)

// fakeConn is a Conn whose query methods are never called by these tests.
type fakeConn struct {
	DB
	closed bool
}

func (c *fakeConn) IsClosed() bool { return c.closed }

func (c *fakeConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func testDatabaseConfig() config.DatabaseConfig {
	cfg := config.DefaultConfig().Database
	cfg.Host = "db.example.internal"
	cfg.Name = "market"
	cfg.User = "ingest"
	cfg.Password = "p@ss word"
	return cfg
}

func newTestManager(cfg config.DatabaseConfig, connect func() (Conn, error)) (*Manager, *int) {
	calls := 0
	m := NewManager(cfg)
	m.connect = func(ctx context.Context, cc *pgx.ConnConfig) (Conn, error) {
		calls++
		return connect()
	}
	return m, &calls
}

func TestConnConfig(t *testing.T) {
	cc, err := ConnConfig(testDatabaseConfig())
	if err != nil {
		t.Fatalf("ConnConfig failed: %v", err)
	}

	if cc.Host != "db.example.internal" {
		t.Errorf("Host = %s", cc.Host)
	}
	if cc.Port != 5432 {
		t.Errorf("Port = %d", cc.Port)
	}
	if cc.Database != "market" {
		t.Errorf("Database = %s", cc.Database)
	}
	if cc.User != "ingest" {
		t.Errorf("User = %s", cc.User)
	}
	if cc.Password != "p@ss word" {
		t.Errorf("Password not preserved: %q", cc.Password)
	}
	if cc.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v", cc.ConnectTimeout)
	}
	if cc.DialFunc == nil {
		t.Error("Expected keepalive DialFunc to be set")
	}
}

func TestConnConfigRequiresSettings(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.Host = ""

	_, err := ConnConfig(cfg)
	if !errors.Is(err, config.ErrMissingSetting) {
		t.Fatalf("Expected ErrMissingSetting, got %v", err)
	}
}

func TestManagerReusesOpenConnection(t *testing.T) {
	conn := &fakeConn{}
	m, calls := newTestManager(testDatabaseConfig(), func() (Conn, error) { return conn, nil })

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same connection to be reused")
	}
	if *calls != 1 {
		t.Errorf("Expected 1 connect, got %d", *calls)
	}
}

func TestManagerReconnectsWhenClosed(t *testing.T) {
	m, calls := newTestManager(testDatabaseConfig(), func() (Conn, error) { return &fakeConn{}, nil })

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first.(*fakeConn).closed = true

	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if first == second {
		t.Error("Expected a new connection after the old one closed")
	}
	if *calls != 2 {
		t.Errorf("Expected 2 connects, got %d", *calls)
	}
}

func TestManagerClearsHandleOnFailure(t *testing.T) {
	fail := true
	m, calls := newTestManager(testDatabaseConfig(), func() (Conn, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return &fakeConn{}, nil
	})

	_, err := m.Acquire(context.Background())
	var dbErr *Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if dbErr.Op != "connect" {
		t.Errorf("Expected op connect, got %s", dbErr.Op)
	}
	if m.conn != nil {
		t.Error("Expected handle to be cleared after failure")
	}

	fail = false
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after recovery failed: %v", err)
	}
	if *calls != 2 {
		t.Errorf("Expected 2 connects, got %d", *calls)
	}
}

func TestManagerConfigErrorIsNotDatabaseError(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.Password = ""
	m, calls := newTestManager(cfg, func() (Conn, error) { return &fakeConn{}, nil })

	_, err := m.Acquire(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		t.Errorf("Config errors must not be reported as database errors: %v", err)
	}
	if *calls != 0 {
		t.Errorf("Expected no connect attempt, got %d", *calls)
	}
}

func TestManagerClose(t *testing.T) {
	conn := &fakeConn{}
	m, _ := newTestManager(testDatabaseConfig(), func() (Conn, error) { return conn, nil })

	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close without connection failed: %v", err)
	}
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.closed {
		t.Error("Expected connection to be closed")
	}
}
