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
	"encoding/json"
	"net/http"
	"time"
)

// SuccessMessage is the message of every successful response body.
const SuccessMessage = "Data processed successfully"

// timestampLayout matches the upstream scheduler's log format.
const timestampLayout = "2006-01-02 15:04:05.000000"

// Response is the structured outcome of one invocation. Body is itself a
// JSON document.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// SuccessBody is the body of a 200 response.
type SuccessBody struct {
	Message          string `json:"message"`
	RecordsProcessed int    `json:"records_processed"`
	RecordsSkipped   int    `json:"records_skipped"`
	Timestamp        string `json:"timestamp"`
}

// ErrorBody is the body of every failed response.
type ErrorBody struct {
	Error string `json:"error"`
}

func successResponse(processed, skipped int, at time.Time) Response {
	return newResponse(http.StatusOK, SuccessBody{
		Message:          SuccessMessage,
		RecordsProcessed: processed,
		RecordsSkipped:   skipped,
		Timestamp:        at.Format(timestampLayout),
	})
}

func errorResponse(e *Error) Response {
	return newResponse(e.StatusCode, ErrorBody{Error: e.Message})
}

func newResponse(status int, body any) Response {
	// Both body types only hold strings and ints.
	b, _ := json.Marshal(body)
	return Response{StatusCode: status, Body: string(b)}
}

// OK reports whether the invocation succeeded.
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Decode unmarshals the body into v.
func (r Response) Decode(v any) error {
	return json.Unmarshal([]byte(r.Body), v)
}

// JSON returns the response document.
func (r Response) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
