// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks by callers.
	ErrSessionNotFound = errors.New("mvgen: session expired or not found")
	ErrBadRequest      = errors.New("mvgen: request rejected")
	ErrServer          = errors.New("mvgen: server error")
	ErrBadResponse     = errors.New("mvgen: malformed response")

	// ErrStreamTruncated is returned when the stream ends without a
	// terminal event.
	ErrStreamTruncated = errors.New("mvgen: stream ended before a terminal event")
)

// APIError carries the server error body of a failed request.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Message   string
	Details   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("mvgen: %s: HTTP %d", e.Operation, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

func sentinelFor(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrSessionNotFound
	case status >= 400 && status < 500:
		return ErrBadRequest
	default:
		return ErrServer
	}
}

// StreamError is a terminal error frame received on the scene stream.
type StreamError struct {
	Message string
	Details string
}

func (e *StreamError) Error() string {
	if e.Details == "" {
		return "mvgen: stream failed: " + e.Message
	}
	return fmt.Sprintf("mvgen: stream failed: %s: %s", e.Message, e.Details)
}
