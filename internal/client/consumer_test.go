// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptedStream = ": keepalive\n\n" +
	"data: {\"progress\":1,\"total\":3,\"imageUrl\":\"data:image/png;base64,AA==\",\"sceneNumber\":1}\n\n" +
	"data: {not json}\n\n" +
	"data: {\"progress\":2,\"total\":3,\"failed\":true,\"details\":\"boom\",\"sceneNumber\":2}\r\n\r\n" +
	"data: {\"progress\":3,\"total\":3,\"imageUrl\":\"data:image/png;base64,AQ==\",\"sceneNumber\":3}\n\n" +
	"data: {\"completed\":true,\"sceneImages\":[\"data:image/png;base64,AA==\",\"\",\"data:image/png;base64,AQ==\"]}\n\n"

type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.chunks) > 0 && len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	return n, nil
}

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	if c, ok := b.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func body(chunks ...string) *trackedBody {
	cr := &chunkReader{}
	for _, c := range chunks {
		cr.chunks = append(cr.chunks, []byte(c))
	}
	return &trackedBody{Reader: cr}
}

func TestConsumeScriptedStream(t *testing.T) {
	var kinds []sse.Kind
	b := body(scriptedStream)
	out, err := NewConsumer(nil).Consume(context.Background(), b, func(ev sse.Event) {
		kinds = append(kinds, ev.Kind)
	})
	require.NoError(t, err)

	assert.True(t, out.Completed)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, []string{"data:image/png;base64,AA==", "", "data:image/png;base64,AQ=="}, out.Images)
	require.Len(t, out.Progress, 3)
	assert.True(t, out.Progress[1].Failed)
	assert.Equal(t, "boom", out.Progress[1].Details)
	assert.Equal(t, []sse.Kind{sse.KindProgress, sse.KindProgress, sse.KindProgress, sse.KindCompleted}, kinds)
	assert.True(t, b.closed.Load())
}

func TestConsumeEverySplitPointYieldsSameOutcome(t *testing.T) {
	want, err := NewConsumer(nil).Consume(context.Background(), body(scriptedStream), nil)
	require.NoError(t, err)

	for k := 1; k < len(scriptedStream); k++ {
		got, err := NewConsumer(nil).Consume(context.Background(), body(scriptedStream[:k], scriptedStream[k:]), nil)
		require.NoError(t, err, "split at %d", k)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d (-want +got):\n%s", k, diff)
		}
	}
}

func TestConsumeErrorFrameIsTerminal(t *testing.T) {
	stream := "data: {\"progress\":1,\"total\":2,\"imageUrl\":\"x\"}\n\n" +
		"data: {\"error\":\"Failed to generate scenes\",\"details\":\"GEMINI_API_KEY is not configured\"}\n\n" +
		"data: {\"progress\":2,\"total\":2}\n\n"

	out, err := NewConsumer(nil).Consume(context.Background(), body(stream), nil)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Failed to generate scenes", se.Message)
	assert.Equal(t, "GEMINI_API_KEY is not configured", se.Details)
	assert.Equal(t, []string{"x"}, out.Images)
	require.NotNil(t, out.Failure)
}

func TestConsumeTruncatedStream(t *testing.T) {
	stream := "data: {\"progress\":1,\"total\":2,\"imageUrl\":\"x\"}\n\ndata: {\"progress\":2"
	out, err := NewConsumer(nil).Consume(context.Background(), body(stream), nil)
	require.ErrorIs(t, err, ErrStreamTruncated)
	assert.Equal(t, []string{"x"}, out.Images)
	assert.False(t, out.Completed)
}

func TestConsumeCancelKeepsReceivedImages(t *testing.T) {
	token := &CancelToken{}
	seen := 0
	b := body(scriptedStream)
	out, err := NewConsumer(token).Consume(context.Background(), b, func(ev sse.Event) {
		if ev.Kind == sse.KindProgress {
			seen++
			if seen == 2 {
				token.Cancel()
			}
		}
	})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.False(t, out.Completed)
	assert.Equal(t, []string{"data:image/png;base64,AA==", ""}, out.Images)
	assert.True(t, b.closed.Load())
}

func TestConsumeCancelUnblocksPendingRead(t *testing.T) {
	pr, pw := io.Pipe()
	b := &trackedBody{Reader: pr}
	token := &CancelToken{}

	go func() {
		_, _ = io.Copy(pw, strings.NewReader("data: {\"progress\":1,\"total\":5,\"imageUrl\":\"a\"}\n\n"))
		// Leave the stream open without further frames.
	}()

	first := make(chan struct{})
	go func() {
		<-first
		token.Cancel()
	}()

	out, err := NewConsumer(token).Consume(context.Background(), b, func(ev sse.Event) {
		close(first)
	})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, []string{"a"}, out.Images)
	assert.True(t, b.closed.Load())
	_ = pw.Close()
}

func TestConsumeContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := NewConsumer(nil).Consume(ctx, body(scriptedStream), nil)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Images)
}

func TestCancelTokenIdempotent(t *testing.T) {
	var tok CancelToken
	assert.False(t, tok.Cancelled())
	tok.Cancel()
	tok.Cancel()
	assert.True(t, tok.Cancelled())
	<-tok.Done()
}
