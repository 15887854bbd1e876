// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/rs/zerolog"
)

// CancelToken is a cooperative cancellation flag shared between the UI side
// and the consumer loop. The zero value is ready to use.
type CancelToken struct {
	once sync.Once
	mu   sync.Mutex
	ch   chan struct{}
}

func (t *CancelToken) done() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch == nil {
		t.ch = make(chan struct{})
	}
	return t.ch
}

// Cancel marks the token cancelled. Safe to call more than once.
func (t *CancelToken) Cancel() {
	ch := t.done()
	t.once.Do(func() { close(ch) })
}

// Done is closed once Cancel is called.
func (t *CancelToken) Done() <-chan struct{} { return t.done() }

// Cancelled reports whether Cancel was called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done():
		return true
	default:
		return false
	}
}

// Handler observes decoded stream events in arrival order.
type Handler func(sse.Event)

// Outcome is what a consumed stream produced.
type Outcome struct {
	// Images holds one entry per received progress event, or the
	// authoritative list from the completed event.
	Images    []string
	Progress  []sse.Progress
	Completed bool
	Cancelled bool
	Failure   *sse.Error
	// Skipped counts malformed frames.
	Skipped int
}

// Consumer reads the scene stream.
type Consumer struct {
	Token  *CancelToken
	Logger zerolog.Logger
}

// NewConsumer returns a consumer bound to token; a nil token never cancels.
func NewConsumer(token *CancelToken) *Consumer {
	if token == nil {
		token = &CancelToken{}
	}
	return &Consumer{Token: token, Logger: log.WithComponent("client")}
}

// Consume reads frames from body until a terminal event, the end of the
// stream, or cancellation. body is always closed.
//
// Cancellation is checked at every frame boundary. A cancelled consumer
// stops reading and returns the images received so far with
// Outcome.Cancelled set and a nil error. An error frame returns a
// *StreamError.
func (c *Consumer) Consume(ctx context.Context, body io.ReadCloser, h Handler) (Outcome, error) {
	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { _ = body.Close() }) }
	defer closeBody()

	// Unblock a pending Read when cancelled mid-frame.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.Token.Done():
		case <-stop:
			return
		}
		closeBody()
	}()

	var out Outcome
	cancelled := func() bool { return ctx.Err() != nil || c.Token.Cancelled() }

	r := sse.NewReader(body)
	for {
		if cancelled() {
			out.Cancelled = true
			c.Logger.Info().
				Str(log.FieldEvent, "stream.cancelled").
				Int("received", len(out.Images)).
				Msg("scene stream cancelled by client")
			return out, nil
		}

		frame, err := r.Next()
		if err != nil {
			if cancelled() {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.Logger.Warn().
					Str(log.FieldEvent, "stream.truncated").
					Bool("partial_frame", r.Partial).
					Int("received", len(out.Images)).
					Msg("scene stream ended without terminal event")
				return out, ErrStreamTruncated
			}
			return out, err
		}

		ev, err := sse.Decode([]byte(frame.Data))
		if err != nil {
			out.Skipped++
			c.Logger.Warn().Err(err).
				Str(log.FieldEvent, "stream.frame_skipped").
				Msg("skipping malformed stream frame")
			continue
		}
		if h != nil {
			h(ev)
		}

		switch ev.Kind {
		case sse.KindProgress:
			out.Progress = append(out.Progress, *ev.Progress)
			out.Images = append(out.Images, ev.Progress.ImageURL)
		case sse.KindCompleted:
			out.Completed = true
			out.Images = ev.Completed.SceneImages
			return out, nil
		case sse.KindError:
			out.Failure = ev.Error
			return out, &StreamError{Message: ev.Error.Error, Details: ev.Error.Details}
		}
	}
}
