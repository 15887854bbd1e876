// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

const defaultShutdownTimeout = 15 * time.Second

// ShutdownHook releases a resource during shutdown. Hooks run after the
// HTTP server stopped, last registered first.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP listener of the daemon.
type Manager interface {
	// Start serves until ctx is done or the server fails, then shuts down.
	Start(ctx context.Context) error
	// Shutdown drains the server and runs the hooks. Later calls are no-ops.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr is the bound address, empty before Start.
	Addr() string
}

type phase int

const (
	phaseIdle phase = iota
	phaseServing
	phaseStopped
)

type manager struct {
	deps   Deps
	logger zerolog.Logger

	mu    sync.Mutex
	phase phase
	srv   *http.Server
	addr  string
	hooks []namedHook
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

// NewManager validates deps and returns an idle manager.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		deps:   deps,
		logger: deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	serveErr, err := m.listen()
	if err != nil {
		return err
	}

	var cause error
	select {
	case cause = <-serveErr:
		m.logger.Error().Err(cause).Str(log.FieldEvent, "api.server.failed").Msg("API server failed, shutting down")
	case <-ctx.Done():
		m.logger.Info().Str(log.FieldEvent, "api.server.stopping").Msg("shutdown requested")
	}

	if err := m.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// listen binds synchronously so that a taken port fails Start. The server
// has no WriteTimeout because scene streams last minutes.
func (m *manager) listen() (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != phaseIdle {
		return nil, errors.New("manager already started")
	}

	cfg := m.deps.Server
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	m.phase = phaseServing
	m.addr = ln.Addr().String()
	m.srv = &http.Server{
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("API server: %w", err)
		}
	}(m.srv)

	m.logger.Info().
		Str(log.FieldEvent, "api.server.listening").
		Str("addr", m.addr).
		Dur("read_header_timeout", cfg.ReadHeaderTimeout).
		Int("max_connections", cfg.MaxConnections).
		Msg("API server listening")
	return serveErr, nil
}

func (m *manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch m.phase {
	case phaseIdle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case phaseStopped:
		m.mu.Unlock()
		return nil
	}
	m.phase = phaseStopped
	srv := m.srv
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	timeout := m.deps.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		// Streams that outlive the drain window are cut.
		_ = srv.Close()
		errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := m.runHook(ctx, hooks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error().Err(err).Int("error_count", len(errs)).Msg("shutdown finished with errors")
		return fmt.Errorf("shutdown errors: %w", err)
	}
	m.logger.Info().Str(log.FieldEvent, "api.server.stopped").Msg("daemon stopped cleanly")
	return nil
}

func (m *manager) runHook(ctx context.Context, h namedHook) error {
	start := time.Now()
	err := h.fn(ctx)
	ev := m.logger.Debug()
	if err != nil {
		ev = m.logger.Error().Err(err)
	}
	ev.Str("hook", h.name).Dur(log.FieldDuration, time.Since(start)).Msg("shutdown hook finished")
	if err != nil {
		return fmt.Errorf("hook %s: %w", h.name, err)
	}
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
}
