// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestManager(t *testing.T) Manager {
	t.Helper()
	mgr, err := NewManager(Deps{
		Logger:     log.WithComponent("test"),
		Server:     testServerConfig("127.0.0.1:0"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	return mgr
}

func TestApp_RequiresManager(t *testing.T) {
	err := NewApp(log.WithComponent("test"), nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrMissingManager)
}

func TestApp_StopsTasksOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	stopped := make(chan struct{})
	task := Task{Name: "probe", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(stopped)
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewApp(log.WithComponent("test"), newTestManager(t), nil, task).Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	<-stopped
}

func TestApp_FailingTaskStopsServer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("task exploded")
	mgr := newTestManager(t)
	task := Task{Name: "broken", Run: func(context.Context) error {
		return boom
	}}

	done := make(chan error, 1)
	go func() { done <- NewApp(log.WithComponent("test"), mgr, nil, task).Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after task failure")
	}
}
