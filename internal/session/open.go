// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	MaxAge  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BadgerPath string
	SQLitePath string
}

// Open creates the configured backend wrapped with metrics.
func Open(ctx context.Context, opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendMemory
	}

	var (
		st  Store
		err error
	)
	switch backend {
	case BackendMemory:
		st = NewMemoryStore(WithMaxAge(opts.MaxAge))
	case BackendRedis:
		st, err = NewRedisStore(ctx, RedisConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			MaxAge:   opts.MaxAge,
		})
	case BackendBadger:
		st, err = OpenBadgerStore(opts.BadgerPath, opts.MaxAge)
	case BackendSQLite:
		st, err = OpenSQLiteStore(ctx, opts.SQLitePath, opts.MaxAge)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumented(st, backend), nil
}
