// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/ManuGH/mvgen/internal/validate"
	"github.com/rs/zerolog"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Storyboard LLM backends.
const (
	LLMGemini = "gemini"
	LLMOpenAI = "openai"
)

// Validate checks a fully merged AppConfig.
// A missing provider API key is not a configuration error: the daemon starts
// and generation requests fail individually.
func Validate(cfg AppConfig) error {
	var r validate.Report

	_, err := zerolog.ParseLevel(cfg.LogLevel)
	r.Check(err == nil && cfg.LogLevel != "", "LogLevel", cfg.LogLevel, "unknown log level %q", cfg.LogLevel)

	srv := cfg.Server
	validate.HostPort(&r, "Server.ListenAddr", srv.ListenAddr)
	validate.AtLeast(&r, "Server.RateLimitRPM", srv.RateLimitRPM, 0)
	validate.AtLeast(&r, "Server.MaxConnections", srv.MaxConnections, 0)
	validate.Above(&r, "Server.ShutdownTimeout", srv.ShutdownTimeout, 0)

	sess := cfg.Session
	validate.OneOf(&r, "Session.Backend", sess.Backend, BackendMemory, BackendRedis, BackendBadger, BackendSQLite)
	validate.Above(&r, "Session.MaxAge", sess.MaxAge, 0)
	validate.Above(&r, "Session.SweepInterval", sess.SweepInterval, 0)
	switch sess.Backend {
	case BackendRedis:
		validate.NotBlank(&r, "Session.RedisAddr", sess.RedisAddr)
		validate.Between(&r, "Session.RedisDB", sess.RedisDB, 0, 15)
	case BackendBadger:
		validate.NotBlank(&r, "Session.BadgerPath", sess.BadgerPath)
	case BackendSQLite:
		validate.NotBlank(&r, "Session.SQLitePath", sess.SQLitePath)
	}

	p := cfg.Provider
	validate.OneOf(&r, "Provider.StoryboardBackend", p.StoryboardBackend, LLMGemini, LLMOpenAI)
	validate.NotBlank(&r, "Provider.StoryboardModel", p.StoryboardModel)
	if p.StoryboardBackend == LLMOpenAI {
		validate.URL(&r, "Provider.LLMBaseURL", p.LLMBaseURL, "http", "https")
	}
	validate.NotBlank(&r, "Provider.ImageModel", p.ImageModel)
	validate.URL(&r, "Provider.ImageBaseURL", p.ImageBaseURL, "http", "https")
	validate.Above(&r, "Provider.RequestTimeout", p.RequestTimeout, 0)
	validate.Between(&r, "Provider.RateLimitRPS", p.RateLimitRPS, 0, 1000)
	validate.AtLeast(&r, "Provider.RateLimitBurst", p.RateLimitBurst, 0)
	validate.AtLeast(&r, "Provider.BreakerThreshold", p.BreakerThreshold, 0)

	pl := cfg.Pipeline
	validate.AtLeast(&r, "Pipeline.SceneDelay", pl.SceneDelay, 0)
	validate.AtLeast(&r, "Pipeline.ProtagonistDelay", pl.ProtagonistDelay, 0)
	validate.OneOf(&r, "Pipeline.DefaultSceneCount", pl.DefaultSceneCount, storyboard.SceneCounts()...)
	_, err = imagegen.ParseAspectRatio(pl.DefaultAspectRatio)
	r.Must("Pipeline.DefaultAspectRatio", pl.DefaultAspectRatio, err)

	if tel := cfg.Telemetry; tel.Enabled {
		validate.OneOf(&r, "Telemetry.Exporter", tel.Exporter, "grpc", "http")
		validate.NotBlank(&r, "Telemetry.Endpoint", tel.Endpoint)
		validate.Between(&r, "Telemetry.SamplingRate", tel.SamplingRate, 0, 1)
	}

	return r.Err()
}
