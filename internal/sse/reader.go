// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Frame is one dispatched event. Data joins multiple data lines with "\n".
type Frame struct {
	Event string
	ID    string
	Data  string
}

// Parser turns arbitrary byte chunks into frames. Frames are only emitted at
// a blank line, so a frame split across chunks is held back until complete.
type Parser struct {
	buf   []byte
	data  []string
	event string
	id    string
	seen  bool
}

// Feed consumes chunk and returns the frames it completed.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.buf = append(p.buf, chunk...)

	var out []Frame
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(p.buf[:i], []byte{'\r'}))
		p.buf = p.buf[i+1:]

		if line == "" {
			if f, ok := p.dispatch(); ok {
				out = append(out, f)
			}
			continue
		}
		p.line(line)
	}
	// Compact so the buffer does not pin consumed chunks.
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return out
}

// Pending reports whether a partial frame is buffered.
func (p *Parser) Pending() bool {
	return len(p.buf) > 0 || p.seen
}

func (p *Parser) line(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		p.data = append(p.data, value)
		p.seen = true
	case "event":
		p.event = value
		p.seen = true
	case "id":
		p.id = value
		p.seen = true
	}
}

func (p *Parser) dispatch() (Frame, bool) {
	defer func() {
		p.data, p.event, p.id, p.seen = nil, "", "", false
	}()
	if len(p.data) == 0 {
		return Frame{}, false
	}
	return Frame{Event: p.event, ID: p.id, Data: strings.Join(p.data, "\n")}, true
}

// Reader pulls frames from a byte stream.
type Reader struct {
	r       io.Reader
	p       Parser
	queue   []Frame
	buf     []byte
	err     error
	Partial bool // set at EOF when an incomplete frame was discarded
}

const readChunk = 4096

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, readChunk)}
}

// Next returns the next complete frame. It returns io.EOF once the stream
// ends; a trailing partial frame is dropped.
func (r *Reader) Next() (Frame, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.queue = append(r.queue, r.p.Feed(r.buf[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.Partial = r.p.Pending()
			}
			r.err = err
		}
	}
	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, nil
}
