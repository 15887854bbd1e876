// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mvgen/internal/config"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/rs/zerolog"
)

// Task is a background loop such as the session sweeper. Run returns when
// ctx is done; an error stops the whole daemon.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// App runs the HTTP manager next to the config reload machinery and the
// background tasks, and stops all of them together.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	holder    *config.Holder
	tasks     []Task
	reloadSig os.Signal
}

// NewApp wires an App. A nil holder disables hot reload.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, tasks ...Task) *App {
	return &App{
		logger:    logger,
		manager:   manager,
		holder:    holder,
		tasks:     tasks,
		reloadSig: syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or a task or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.holder != nil {
		g.Go(func() error { a.watchConfig(ctx); return nil })
		g.Go(func() error { a.reloadOnSignal(ctx); return nil })
	}
	for _, t := range a.tasks {
		g.Go(func() error { return a.runTask(ctx, t) })
	}
	g.Go(func() error { return a.serve(ctx) })
	return g.Wait()
}

// watchConfig follows the config file. Watch failures are logged only.
func (a *App) watchConfig(ctx context.Context) {
	if err := a.holder.Watch(ctx); err != nil {
		a.logger.Warn().Err(err).
			Str(log.FieldEvent, "config.watcher_failed").
			Msg("config watcher stopped, reload with SIGHUP only")
	}
}

func (a *App) reloadOnSignal(ctx context.Context) {
	if a.reloadSig == nil {
		return
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, a.reloadSig)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
		}
		a.logger.Info().
			Str(log.FieldEvent, "config.reload_signal").
			Str("signal", a.reloadSig.String()).
			Msg("reloading configuration")
		if err := a.holder.Reload(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn().Err(err).
				Str(log.FieldEvent, "config.reload_failed").
				Msg("configuration kept unchanged")
		}
	}
}

func (a *App) runTask(ctx context.Context, t Task) error {
	a.logger.Debug().Str("task", t.Name).Msg("task started")
	if err := t.Run(ctx); err != nil {
		a.logger.Error().Err(err).Str("task", t.Name).Msg("task failed")
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	return nil
}

// serve runs the manager. A failed start still releases whatever the
// manager managed to acquire.
func (a *App) serve(ctx context.Context) error {
	err := a.manager.Start(ctx)
	if err != nil {
		_ = a.manager.Shutdown(context.WithoutCancel(ctx))
	}
	return err
}
