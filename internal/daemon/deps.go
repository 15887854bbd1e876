// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"errors"
	"net/http"

	"github.com/ManuGH/mvgen/internal/config"
	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: api handler is required")
	ErrMissingManager    = errors.New("daemon: app needs a manager")
	// ErrManagerNotStarted is returned by Shutdown before Start bound the listener.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps is what a Manager needs to serve the mvgen API.
type Deps struct {
	Logger     zerolog.Logger
	Server     config.ServerConfig
	APIHandler http.Handler
}

// Validate rejects a disabled logger and a missing handler.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
