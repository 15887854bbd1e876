// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command mvgend serves the music video generation API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/mvgen/internal/config"
	"github.com/ManuGH/mvgen/internal/daemon"
	"github.com/ManuGH/mvgen/internal/health"
	mvlog "github.com/ManuGH/mvgen/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	mvlog.Configure(mvlog.Config{
		Level:   "info",
		Service: "mvgen",
		Version: version,
	})
	logger := mvlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(*configPath), version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(mvlog.FieldEvent, "config.load_failed").
			Str("config_path", loader.Path()).
			Msg("failed to load configuration")
	}

	mvlog.Configure(mvlog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = mvlog.WithComponent("daemon")

	if loader.Path() != "" {
		logger.Info().
			Str(mvlog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", loader.Path()).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(mvlog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(mvlog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str(mvlog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting mvgen")

	logger.Info().Msgf("→ Sessions: %s (max age %s)", cfg.Session.Backend, cfg.Session.MaxAge)
	logger.Info().Msgf("→ Storyboard: %s/%s", cfg.Provider.StoryboardBackend, cfg.Provider.StoryboardModel)
	logger.Info().Msgf("→ Images: %s at %s", cfg.Provider.ImageModel, maskURL(cfg.Provider.ImageBaseURL))
	if cfg.Provider.APIKey == "" {
		logger.Warn().Msg("→ API key: NOT configured. Generation calls will fail until MVGEN_API_KEY or GEMINI_API_KEY is set.")
	}

	rt, err := daemon.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(mvlog.FieldEvent, "daemon.build_failed").
			Msg("failed to assemble service")
	}

	mgr, err := daemon.NewManager(daemon.Deps{
		Logger:     logger,
		Server:     cfg.Server,
		APIHandler: rt.Handler,
	})
	if err != nil {
		_ = rt.Close(context.Background())
		logger.Fatal().
			Err(err).
			Str(mvlog.FieldEvent, "manager.creation.failed").
			Msg("failed to create daemon manager")
	}
	rt.RegisterShutdownHooks(mgr)

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(rt.ApplyReload)

	app := daemon.NewApp(logger, mgr, holder, rt.Tasks()...)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(mvlog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
