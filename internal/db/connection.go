//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package db provides database connection management for pgedge-stock-ingest.
package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
)

// DB is an interface that both *pgxpool.Pool and *pgx.Conn satisfy.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a single connection owned by a Manager. *pgx.Conn satisfies it.
type Conn interface {
	DB
	IsClosed() bool
	Close(ctx context.Context) error
}

// Error marks a failure that originated in the database layer.
type Error struct {
	// Op names the step that failed (connect, begin, upsert, commit).
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ConnConfig builds the pgx configuration for cfg: connect timeout and TCP
// keepalive probes are applied to every dial.
func ConnConfig(cfg config.DatabaseConfig) (*pgx.ConnConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}

	connConfig, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection settings: %w", err)
	}

	connConfig.ConnectTimeout = cfg.ConnectTimeout
	dialer := &net.Dialer{
		Timeout: cfg.ConnectTimeout,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     cfg.KeepAliveIdle,
			Interval: cfg.KeepAliveInterval,
			Count:    cfg.KeepAliveCount,
		},
	}
	connConfig.DialFunc = dialer.DialContext

	return connConfig, nil
}

// Manager owns one process-wide connection and hands it out to every
// invocation. The connection is opened lazily and reopened when the
// previous one reports closed. Acquire calls are serialized.
type Manager struct {
	mu      sync.Mutex
	cfg     config.DatabaseConfig
	conn    Conn
	connect func(ctx context.Context, cc *pgx.ConnConfig) (Conn, error)
}

// NewManager creates a Manager for cfg. No connection is opened until
// the first Acquire.
func NewManager(cfg config.DatabaseConfig) *Manager {
	return &Manager{
		cfg: cfg,
		connect: func(ctx context.Context, cc *pgx.ConnConfig) (Conn, error) {
			return pgx.ConnectConfig(ctx, cc)
		},
	}
}

// Acquire returns the shared connection, opening a new one if there is
// none or the current one is closed. Configuration problems are returned
// as is; connection failures are returned as *Error and clear the handle.
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && !m.conn.IsClosed() {
		logging.Debug().Msg("Reusing database connection")
		return m.conn, nil
	}

	connConfig, err := ConnConfig(m.cfg)
	if err != nil {
		m.conn = nil
		return nil, err
	}

	logging.Debug().
		Str("host", connConfig.Host).
		Uint16("port", connConfig.Port).
		Str("database", connConfig.Database).
		Dur("connect_timeout", connConfig.ConnectTimeout).
		Msg("Connecting to database")

	conn, err := m.connect(ctx, connConfig)
	if err != nil {
		m.conn = nil
		logging.Error().Err(err).Msg("Connection error")
		return nil, &Error{Op: "connect", Err: err}
	}
	m.conn = conn

	logging.Info().
		Str("host", connConfig.Host).
		Str("database", connConfig.Database).
		Msg("Connected to database")

	return conn, nil
}

// Close closes the shared connection, if any. It is meant for process
// shutdown; invocations never close the connection themselves.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close(ctx)
	m.conn = nil
	return err
}
