// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration with precedence ENV > File > Defaults.
package config

import "time"

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Provider  ProviderConfig  `yaml:"provider"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listenAddr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"`
	// EnableCSRF rejects browser POSTs whose Origin is not allowed.
	EnableCSRF bool `yaml:"csrfProtection"`
	// RateLimitRPM is the per-IP request budget per minute; 0 disables the limiter.
	RateLimitRPM int `yaml:"rateLimitRPM"`
	// MaxConnections caps concurrent TCP connections, open streams included.
	MaxConnections int `yaml:"maxConnections"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Backend       string        `yaml:"backend"` // memory | redis | badger | sqlite
	MaxAge        time.Duration `yaml:"maxAge"`
	SweepInterval time.Duration `yaml:"sweepInterval"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	BadgerPath string `yaml:"badgerPath"`
	SQLitePath string `yaml:"sqlitePath"`
}

// ProviderConfig describes the storyboard (LLM) and image generation providers.
type ProviderConfig struct {
	// APIKey is deliberately not read from the YAML file.
	APIKey string `yaml:"-"`

	StoryboardBackend string `yaml:"storyboardBackend"` // gemini | openai
	StoryboardModel   string `yaml:"storyboardModel"`
	// LLMBaseURL is only used by the openai backend (OpenAI-compatible endpoint).
	LLMBaseURL string `yaml:"llmBaseURL"`

	ImageModel   string `yaml:"imageModel"`
	ImageBaseURL string `yaml:"imageBaseURL"`

	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	RateLimitRPS     float64       `yaml:"rateLimitRPS"`
	RateLimitBurst   int           `yaml:"rateLimitBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// PipelineConfig holds orchestrator tunables.
type PipelineConfig struct {
	SceneDelay         time.Duration `yaml:"sceneDelay"`
	ProtagonistDelay   time.Duration `yaml:"protagonistDelay"`
	DefaultSceneCount  int           `yaml:"defaultSceneCount"`
	DefaultAspectRatio string        `yaml:"defaultAspectRatio"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "mvgen",
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimitRPM:      600,
			MaxConnections:    512,
		},
		Session: SessionConfig{
			Backend:       "memory",
			MaxAge:        30 * time.Minute,
			SweepInterval: 5 * time.Minute,
			RedisAddr:     "localhost:6379",
			BadgerPath:    "data/sessions",
			SQLitePath:    "data/sessions.db",
		},
		Provider: ProviderConfig{
			StoryboardBackend: "gemini",
			StoryboardModel:   "gemini-2.5-flash",
			LLMBaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai/",
			ImageModel:        "gemini-2.5-flash-image",
			ImageBaseURL:      "https://generativelanguage.googleapis.com/v1beta",
			RequestTimeout:    120 * time.Second,
			RateLimitRPS:      1,
			RateLimitBurst:    1,
			BreakerThreshold:  5,
			BreakerReset:      30 * time.Second,
		},
		Pipeline: PipelineConfig{
			SceneDelay:         1 * time.Second,
			ProtagonistDelay:   2 * time.Second,
			DefaultSceneCount:  12,
			DefaultAspectRatio: "16:9",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}
