// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the service graph from configuration and owns its
// lifecycle: HTTP server, background tasks, hot reload and shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/mvgen/internal/api"
	"github.com/ManuGH/mvgen/internal/config"
	"github.com/ManuGH/mvgen/internal/health"
	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/ratelimit"
	"github.com/ManuGH/mvgen/internal/resilience"
	"github.com/ManuGH/mvgen/internal/session"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/ManuGH/mvgen/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Runtime is the assembled service graph.
type Runtime struct {
	Store        session.Store
	Sweeper      *session.Sweeper
	Orchestrator *pipeline.Orchestrator
	Health       *health.Manager
	Handler      http.Handler
	Limiter      *ratelimit.Limiter
	Breaker      *resilience.CircuitBreaker

	telemetry *telemetry.Provider
	closers   []namedCloser
	logger    zerolog.Logger
}

type namedCloser struct {
	name  string
	close func(ctx context.Context) error
}

// Build assembles the runtime from cfg. Scene jobs are rooted at ctx, so
// cancelling it stops running jobs at their next scene boundary.
func Build(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	rt := &Runtime{logger: log.WithComponent("daemon")}

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewProvider(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.LogService,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Telemetry.Environment,
			ExporterType:   cfg.Telemetry.Exporter,
			Endpoint:       cfg.Telemetry.Endpoint,
			SamplingRate:   cfg.Telemetry.SamplingRate,
		})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		rt.telemetry = tp
		rt.addCloser("telemetry", tp.Shutdown)
	}

	store, err := session.Open(ctx, session.Options{
		Backend:       cfg.Session.Backend,
		MaxAge:        cfg.Session.MaxAge,
		RedisAddr:     cfg.Session.RedisAddr,
		RedisPassword: cfg.Session.RedisPassword,
		RedisDB:       cfg.Session.RedisDB,
		BadgerPath:    cfg.Session.BadgerPath,
		SQLitePath:    cfg.Session.SQLitePath,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open session store: %w", err), rt.Close(context.WithoutCancel(ctx)))
	}
	rt.Store = store
	rt.addCloser("session_store", func(context.Context) error { return store.Close() })
	rt.Sweeper = session.NewSweeper(store, cfg.Session.SweepInterval, cfg.Session.MaxAge)

	chat, closeChat, err := newChatModel(ctx, cfg.Provider)
	if err != nil {
		return nil, errors.Join(err, rt.Close(context.WithoutCancel(ctx)))
	}
	if closeChat != nil {
		rt.addCloser("storyboard_model", func(context.Context) error { return closeChat() })
	}
	storyboards := storyboard.NewGenerator(chat, cfg.Provider.StoryboardBackend, cfg.Provider.StoryboardModel, cfg.Provider.RequestTimeout)

	rt.Limiter = ratelimit.New(ratelimit.Config{
		GlobalRate:  rate.Limit(cfg.Provider.RateLimitRPS),
		GlobalBurst: cfg.Provider.RateLimitBurst,
	})
	rt.Breaker = resilience.NewCircuitBreaker("imagegen", cfg.Provider.BreakerThreshold, cfg.Provider.BreakerReset)
	images := imagegen.New(imagegen.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.ImageBaseURL,
		Model:   cfg.Provider.ImageModel,
		Timeout: cfg.Provider.RequestTimeout,
		Limiter: rt.Limiter,
		Breaker: rt.Breaker,
	})

	aspect, err := imagegen.ParseAspectRatio(cfg.Pipeline.DefaultAspectRatio)
	if err != nil {
		return nil, errors.Join(err, rt.Close(context.WithoutCancel(ctx)))
	}
	rt.Orchestrator = pipeline.New(store, storyboards, images, pipeline.NewJobs(ctx), pipeline.Config{
		SceneDelay:         cfg.Pipeline.SceneDelay,
		ProtagonistDelay:   cfg.Pipeline.ProtagonistDelay,
		DefaultSceneCount:  cfg.Pipeline.DefaultSceneCount,
		DefaultAspectRatio: aspect,
	})

	configured := cfg.Provider.APIKey != ""
	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewFuncChecker("session_store", func(ctx context.Context) error {
		_, err := store.Has(ctx, "healthcheck")
		return err
	}))
	rt.Health.RegisterChecker(health.NewSweepChecker(rt.Sweeper.LastRun, rt.Sweeper.Interval))
	rt.Health.RegisterChecker(health.NewProviderChecker("storyboard", configured, nil))
	rt.Health.RegisterChecker(health.NewProviderChecker("image", configured, rt.Breaker))

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.LogService
	}
	rt.Handler = api.New(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableCSRF:     cfg.Server.EnableCSRF,
		RateLimitRPM:   cfg.Server.RateLimitRPM,
		TracingService: tracing,
	}, rt.Orchestrator, rt.Health).Handler()

	rt.logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Str("session_backend", cfg.Session.Backend).
		Str("storyboard_backend", cfg.Provider.StoryboardBackend).
		Bool("provider_configured", configured).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("service graph assembled")
	return rt, nil
}

// newChatModel selects the storyboard backend. Without an API key it returns
// a nil model so the generator reports ErrNotConfigured on first use.
func newChatModel(ctx context.Context, p config.ProviderConfig) (storyboard.ChatModel, func() error, error) {
	if p.APIKey == "" {
		return nil, nil, nil
	}
	switch p.StoryboardBackend {
	case "openai":
		m, err := storyboard.NewOpenAIModel(ctx, storyboard.OpenAIConfig{
			APIKey:  p.APIKey,
			BaseURL: p.LLMBaseURL,
			Model:   p.StoryboardModel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("storyboard model: %w", err)
		}
		return m, nil, nil
	case "gemini", "":
		m, err := storyboard.NewGeminiModel(ctx, p.APIKey, p.StoryboardModel)
		if err != nil {
			return nil, nil, fmt.Errorf("storyboard model: %w", err)
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storyboard backend: %s", p.StoryboardBackend)
	}
}

func (rt *Runtime) addCloser(name string, fn func(ctx context.Context) error) {
	rt.closers = append(rt.closers, namedCloser{name: name, close: fn})
}

// RegisterShutdownHooks hands the runtime's resources to m, closed in
// reverse order of acquisition.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	for _, c := range rt.closers {
		m.RegisterShutdownHook(c.name, c.close)
	}
}

// Close releases everything Build acquired. Used when the manager never ran.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.closers[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// Tasks returns the background tasks the App must run.
func (rt *Runtime) Tasks() []Task {
	return []Task{{Name: "session_sweeper", Run: rt.Sweeper.Run}}
}

// ApplyReload pushes the hot-reloadable subset of updated into the running
// graph. Listener, store and provider settings need a restart.
func (rt *Runtime) ApplyReload(old, updated config.AppConfig) {
	if old.LogLevel != updated.LogLevel {
		if err := log.SetLevel(updated.LogLevel); err != nil {
			rt.logger.Warn().Err(err).Str("level", updated.LogLevel).Msg("ignoring invalid log level")
		}
	}
	rt.Orchestrator.SetDelays(updated.Pipeline.SceneDelay, updated.Pipeline.ProtagonistDelay)
	rt.Limiter.SetRate(rate.Limit(updated.Provider.RateLimitRPS))

	rt.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Dur("scene_delay", updated.Pipeline.SceneDelay).
		Dur("protagonist_delay", updated.Pipeline.ProtagonistDelay).
		Float64("provider_rps", updated.Provider.RateLimitRPS).
		Msg("runtime settings reloaded")
}
