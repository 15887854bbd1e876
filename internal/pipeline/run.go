// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"github.com/ManuGH/mvgen/internal/pipeline/fsm"
)

// State is a stage of one pipeline run.
type State string

const (
	StateIdle               State = "idle"
	StateStoryboardPending  State = "storyboard_pending"
	StateStoryboardReady    State = "storyboard_ready"
	StateProtagonistPending State = "protagonist_pending"
	StateProtagonistReady   State = "protagonist_ready"
	StateScenesRunning      State = "scenes_running"
	StateCompleted          State = "completed"
	StateCancelled          State = "cancelled"
	StateFailed             State = "failed"
)

// Terminal reports whether no further work happens in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Event drives the run machine.
type Event string

const (
	EventSubmitLyrics          Event = "submit_lyrics"
	EventStoryboardGenerated   Event = "storyboard_generated"
	EventRegenerateStoryboard  Event = "regenerate_storyboard"
	EventEditStoryboard        Event = "edit_storyboard"
	EventConfirmStoryboard     Event = "confirm_storyboard"
	EventProtagonistsGenerated Event = "protagonists_generated"
	EventSelectProtagonist     Event = "select_protagonist"
	EventSceneProgress         Event = "scene_progress"
	EventComplete              Event = "complete"
	EventCancel                Event = "cancel"
	EventFail                  Event = "fail"
	EventReset                 Event = "reset"
)

// Machine is the run state machine shared by server and client.
type Machine = fsm.Machine[State, Event]

// Step is an applied run transition.
type Step = fsm.Step[State, Event]

type edge = fsm.Transition[State, Event]

// Transitions returns the edges of the run machine.
func Transitions() []fsm.Transition[State, Event] {
	out := []edge{
		{From: StateIdle, Event: EventSubmitLyrics, To: StateStoryboardPending},
		{From: StateStoryboardPending, Event: EventStoryboardGenerated, To: StateStoryboardReady},
		{From: StateStoryboardReady, Event: EventRegenerateStoryboard, To: StateStoryboardPending},
		{From: StateStoryboardReady, Event: EventEditStoryboard, To: StateStoryboardReady},
		{From: StateStoryboardReady, Event: EventConfirmStoryboard, To: StateProtagonistPending},
		{From: StateProtagonistPending, Event: EventProtagonistsGenerated, To: StateProtagonistReady},
		{From: StateProtagonistReady, Event: EventSelectProtagonist, To: StateScenesRunning},
		{From: StateScenesRunning, Event: EventSceneProgress, To: StateScenesRunning},
		{From: StateScenesRunning, Event: EventComplete, To: StateCompleted},
		{From: StateScenesRunning, Event: EventCancel, To: StateCancelled},
	}
	for _, s := range []State{StateStoryboardPending, StateProtagonistPending, StateScenesRunning} {
		out = append(out, edge{From: s, Event: EventFail, To: StateFailed})
	}
	for _, s := range []State{StateCompleted, StateCancelled, StateFailed} {
		out = append(out, edge{From: s, Event: EventReset, To: StateIdle})
	}
	return out
}

// NewMachine returns a run machine in initial.
func NewMachine(initial State) *Machine {
	m, err := fsm.New(initial, Transitions())
	if err != nil {
		// Transitions is static; a duplicate edge is a programming error.
		panic(err)
	}
	return m
}
