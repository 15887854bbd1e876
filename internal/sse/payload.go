// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SceneData describes the scene behind a progress event.
type SceneData struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	SceneNumber int    `json:"scene_number"`
}

// Progress reports one finished (or failed) unit of the scene loop.
type Progress struct {
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	SceneNumber int        `json:"sceneNumber,omitempty"`
	SceneData   *SceneData `json:"sceneData,omitempty"`
	Failed      bool       `json:"failed,omitempty"`
	Details     string     `json:"details,omitempty"`
}

// Completed is the terminal success payload. SceneImages has one entry per
// scene; failed scenes hold "".
type Completed struct {
	Completed   bool     `json:"completed"`
	SceneImages []string `json:"sceneImages"`
}

// Error is the terminal failure payload.
type Error struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Kind tags a decoded payload.
type Kind string

const (
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Event is a decoded stream payload; exactly one of the pointers is set.
type Event struct {
	Kind      Kind
	Progress  *Progress
	Completed *Completed
	Error     *Error
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindError
}

// ErrUnknownPayload is returned for JSON that matches no payload shape.
var ErrUnknownPayload = errors.New("sse: unknown payload")

// Decode classifies a frame's data. An "error" field wins, then
// "completed": true, then "progress".
func Decode(data []byte) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Event{}, fmt.Errorf("sse: decode payload: %w", err)
	}

	if raw, ok := probe["error"]; ok && !isNull(raw) {
		var e Error
		if err := json.Unmarshal(data, &e); err != nil {
			return Event{}, fmt.Errorf("sse: decode error payload: %w", err)
		}
		return Event{Kind: KindError, Error: &e}, nil
	}
	if raw, ok := probe["completed"]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("true")) {
		var c Completed
		if err := json.Unmarshal(data, &c); err != nil {
			return Event{}, fmt.Errorf("sse: decode completed payload: %w", err)
		}
		return Event{Kind: KindCompleted, Completed: &c}, nil
	}
	if _, ok := probe["progress"]; ok {
		var p Progress
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("sse: decode progress payload: %w", err)
		}
		return Event{Kind: KindProgress, Progress: &p}, nil
	}
	return Event{}, ErrUnknownPayload
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
