package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/pkg/version"
)

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(config.FeedConfig{
		URL:       url,
		UserAgent: "test-agent/1.0",
		Timeout:   timeout,
	})
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"StockCode": "BBCA"}, {"StockCode": "BBRI"}]}`))
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL, 5*time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(p.Data) != 2 {
		t.Errorf("Expected 2 items, got %d", len(p.Data))
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("Expected User-Agent header, got %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected Accept application/json, got %q", gotAccept)
	}
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"data": [{}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.FeedConfig{URL: srv.URL, Timeout: 5 * time.Second})
	if _, err := c.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA != version.UserAgent() {
		t.Errorf("Expected %q, got %q", version.UserAgent(), gotUA)
	}
}

func TestFetchStatusError(t *testing.T) {
	tests := []struct {
		status   int
		contains string
	}{
		{http.StatusNotFound, "404 Client Error: Not Found for url: "},
		{http.StatusForbidden, "403 Client Error: Forbidden"},
		{http.StatusServiceUnavailable, "503 Server Error: Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 5*time.Second).Fetch(context.Background())
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("Expected *StatusError, got %T: %v", err, err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, se.StatusCode)
			}
			if !strings.Contains(se.Error(), tt.contains) {
				t.Errorf("Expected %q in %q", tt.contains, se.Error())
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, 5*time.Second).Fetch(context.Background())
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("Expected *RequestError, got %T: %v", err, err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("Connection refused must not be reported as a timeout")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    error
		wantLen int
	}{
		{name: "items", body: `{"data": [{}, {}, {}]}`, wantLen: 3},
		{name: "extra members", body: `{"status": "ok", "data": [{}]}`, wantLen: 1},
		{name: "missing data", body: `{"status": "ok"}`, want: ErrNoData},
		{name: "null data", body: `{"data": null}`, want: ErrNoData},
		{name: "empty list", body: `{"data": []}`, want: ErrNoData},
		{name: "empty list with spaces", body: `{"data": [ ]}`, want: ErrNoData},
		{name: "empty object", body: `{"data": {}}`, want: ErrNoData},
		{name: "malformed json", body: `{"data": [`, want: ErrInvalidPayload},
		{name: "html", body: `<html>oops</html>`, want: ErrInvalidPayload},
		{name: "top level list", body: `[{"StockCode": "BBCA"}]`, want: ErrInvalidPayload},
		{name: "data not a list", body: `{"data": {"StockCode": "BBCA"}}`, want: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body))
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("Expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(p.Data) != tt.wantLen {
				t.Errorf("Expected %d items, got %d", tt.wantLen, len(p.Data))
			}
		})
	}
}
