// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sse implements the `data: <JSON>\n\n` event stream used for scene
// progress, both the server writer and the chunk-tolerant client reader.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrClosed is returned by Send once the peer is gone. It is sticky.
var ErrClosed = errors.New("sse: stream closed")

// SetHeaders writes the event-stream response headers.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Writer frames JSON payloads onto an http.ResponseWriter and flushes each one.
type Writer struct {
	ctx context.Context
	w   http.ResponseWriter
	rc  *http.ResponseController

	mu     sync.Mutex
	closed bool
	sent   int
}

// NewWriter sets the stream headers and returns a Writer. ctx is the request
// context; once it is done the stream counts as closed.
func NewWriter(ctx context.Context, w http.ResponseWriter) *Writer {
	SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	sw := &Writer{ctx: ctx, w: w, rc: http.NewResponseController(w)}
	_ = sw.rc.Flush()
	return sw
}

// Send writes one `data:` frame. After the first failure every call returns
// ErrClosed without writing.
func (s *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: encode payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.ctx.Err(); err != nil {
		s.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')

	if _, err := s.w.Write(buf); err != nil {
		s.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	s.sent++
	return nil
}

// Closed reports whether a previous Send failed.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sent returns the number of frames written.
func (s *Writer) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
