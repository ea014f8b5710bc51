//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package feed fetches the daily stock summary feed over HTTP.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
	"github.com/pgEdge/pgedge-stock-ingest/pkg/version"
)

var (
	// ErrTimeout is returned when the feed does not answer within the
	// client timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrNoData is returned when the payload has no data items.
	ErrNoData = errors.New("no data received")

	// ErrInvalidPayload is returned when the body is not the expected JSON shape.
	ErrInvalidPayload = errors.New("invalid payload")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	class := "Error"
	switch {
	case e.StatusCode >= 400 && e.StatusCode < 500:
		class = "Client Error"
	case e.StatusCode >= 500 && e.StatusCode < 600:
		class = "Server Error"
	}
	return fmt.Sprintf("%d %s: %s for url: %s",
		e.StatusCode, class, http.StatusText(e.StatusCode), e.URL)
}

// RequestError wraps transport failures other than timeouts.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// Payload is the decoded top-level feed document.
type Payload struct {
	// Data holds the raw items; each is decoded separately so one bad
	// item cannot fail the whole payload.
	Data []json.RawMessage
}

// Client fetches the feed.
type Client struct {
	httpClient *http.Client
	url        string
	userAgent  string
}

// NewClient creates a feed client from cfg.
func NewClient(cfg config.FeedConfig) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		userAgent:  userAgent,
	}
}

// URL returns the feed endpoint.
func (c *Client) URL() string {
	return c.url
}

// Fetch downloads and decodes the feed.
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	logging.Debug().
		Str("url", c.url).
		Dur("timeout", c.httpClient.Timeout).
		Msg("Fetching feed")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: c.url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	return body, nil
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &RequestError{Err: err}
}

// Decode parses a feed document. A missing, null or empty data member
// yields ErrNoData; anything that is not a JSON object with a data list
// yields ErrInvalidPayload.
func Decode(body []byte) (*Payload, error) {
	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if isEmpty(doc.Data) {
		return nil, ErrNoData
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc.Data, &items); err != nil {
		return nil, fmt.Errorf("%w: data is not a list: %v", ErrInvalidPayload, err)
	}
	return &Payload{Data: items}, nil
}

// isEmpty reports whether v is absent or a JSON value with no content.
func isEmpty(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", "[]", "{}", `""`, "0", "false":
		return true
	}
	if v[0] == '[' || v[0] == '{' {
		inner := bytes.TrimSpace(v[1 : len(v)-1])
		return len(inner) == 0
	}
	return false
}
