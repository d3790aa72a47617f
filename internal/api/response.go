// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cinecord/internal/logging"
)

// APIResponse wraps every JSON body served by the status API.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError is a machine-readable error body.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta carries per-response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

// Error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ResponseWriter writes APIResponse envelopes.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a response writer for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

// Success writes a 200 response.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, data)
}

// Status writes data with an explicit status code. Health checks use it to
// report 503 while still returning a body.
func (rw *ResponseWriter) Status(statusCode int, data interface{}) {
	rw.write(statusCode, data)
}

func (rw *ResponseWriter) write(statusCode int, data interface{}) {
	rw.writeJSON(statusCode, APIResponse{
		Success: statusCode < http.StatusBadRequest,
		Data:    data,
		Meta:    rw.meta(),
	})
}

// Error writes an error envelope.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// NotFound writes a 404.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// TooManyRequests writes a 429.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

func (rw *ResponseWriter) writeJSON(statusCode int, body APIResponse) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		rw.w.WriteHeader(http.StatusInternalServerError)
		return
	}

	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.Header().Set("Cache-Control", "no-store")
	rw.w.WriteHeader(statusCode)
	if _, err := rw.w.Write(data); err != nil {
		logging.Ctx(rw.r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}
