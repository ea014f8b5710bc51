//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgEdge/pgedge-stock-ingest/internal/db"
	"github.com/pgEdge/pgedge-stock-ingest/internal/feed"
)

// Kind identifies where a failed invocation went wrong.
type Kind int

const (
	KindUnexpected Kind = iota
	KindTimeout
	KindHTTP
	KindRequest
	KindNoData
	KindInvalidPayload
	KindDatabase
)

var kindNames = map[Kind]string{
	KindUnexpected:     "unexpected",
	KindTimeout:        "timeout",
	KindHTTP:           "http",
	KindRequest:        "request",
	KindNoData:         "no_data",
	KindInvalidPayload: "invalid_payload",
	KindDatabase:       "database",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified invocation failure. Message is what the caller
// sees; Internal keeps the original error for logs.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Internal   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Internal }

// Classify maps any error from an invocation to its caller-visible status
// and message.
func Classify(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}

	var (
		statusErr  *feed.StatusError
		requestErr *feed.RequestError
		dbErr      *db.Error
		pgErr      *pgconn.PgError
	)

	switch {
	case errors.Is(err, feed.ErrTimeout):
		return &Error{
			Kind:       KindTimeout,
			StatusCode: http.StatusGatewayTimeout,
			Message:    "Request timeout - API took too long to respond",
			Internal:   err,
		}
	case errors.As(err, &statusErr):
		return &Error{
			Kind:       KindHTTP,
			StatusCode: statusErr.StatusCode,
			Message:    fmt.Sprintf("HTTP Error %d: %s", statusErr.StatusCode, statusErr.Error()),
			Internal:   err,
		}
	case errors.As(err, &requestErr):
		return &Error{
			Kind:       KindRequest,
			StatusCode: http.StatusInternalServerError,
			Message:    "Request failed: " + requestErr.Error(),
			Internal:   err,
		}
	case errors.Is(err, feed.ErrNoData):
		return &Error{
			Kind:       KindNoData,
			StatusCode: http.StatusBadRequest,
			Message:    "No data received from API",
			Internal:   err,
		}
	case errors.Is(err, feed.ErrInvalidPayload):
		return &Error{
			Kind:       KindInvalidPayload,
			StatusCode: http.StatusBadGateway,
			Message:    "Invalid JSON from API: " + err.Error(),
			Internal:   err,
		}
	case errors.As(err, &dbErr), errors.As(err, &pgErr):
		return &Error{
			Kind:       KindDatabase,
			StatusCode: http.StatusInternalServerError,
			Message:    "Database error: " + err.Error(),
			Internal:   err,
		}
	default:
		return &Error{
			Kind:       KindUnexpected,
			StatusCode: http.StatusInternalServerError,
			Message:    "Unexpected error: " + err.Error(),
			Internal:   err,
		}
	}
}
