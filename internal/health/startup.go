// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/mvgen/internal/config"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the server starts.
// A missing provider key is only a warning; it surfaces on first use.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(cfg.Server.ListenAddr); err != nil {
		return err
	}

	switch cfg.Session.Backend {
	case "badger":
		if err := checkDataDir(logger, cfg.Session.BadgerPath); err != nil {
			return fmt.Errorf("badger directory check failed: %w", err)
		}
	case "sqlite":
		if err := checkDataDir(logger, filepath.Dir(cfg.Session.SQLitePath)); err != nil {
			return fmt.Errorf("sqlite directory check failed: %w", err)
		}
	case "redis":
		if _, _, err := net.SplitHostPort(cfg.Session.RedisAddr); err != nil {
			return fmt.Errorf("invalid redis address %q: %w", cfg.Session.RedisAddr, err)
		}
	}

	for name, raw := range map[string]string{"imageBaseURL": cfg.Provider.ImageBaseURL, "llmBaseURL": cfg.Provider.LLMBaseURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("provider %s must be an http(s) URL, got %q", name, raw)
		}
	}

	if cfg.Provider.APIKey == "" {
		logger.Warn().
			Str(log.FieldEvent, "startup.api_key_missing").
			Msg("no provider API key configured; generation requests will fail until one is set")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

// checkDataDir ensures path exists and is writable.
func checkDataDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}
