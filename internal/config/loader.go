// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvLogLevel           = "MVGEN_LOG_LEVEL"
	EnvListen             = "MVGEN_LISTEN"
	EnvCORSOrigins        = "MVGEN_CORS_ORIGINS"
	EnvRateLimitRPM       = "MVGEN_RATE_LIMIT_RPM"
	EnvCSRF               = "MVGEN_CSRF"
	EnvMaxConnections     = "MVGEN_MAX_CONNECTIONS"
	EnvSessionBackend     = "MVGEN_SESSION_BACKEND"
	EnvSessionMaxAge      = "MVGEN_SESSION_MAX_AGE"
	EnvSweepInterval      = "MVGEN_SWEEP_INTERVAL"
	EnvRedisAddr          = "MVGEN_REDIS_ADDR"
	EnvRedisPassword      = "MVGEN_REDIS_PASSWORD"
	EnvRedisDB            = "MVGEN_REDIS_DB"
	EnvBadgerPath         = "MVGEN_BADGER_PATH"
	EnvSQLitePath         = "MVGEN_SQLITE_PATH"
	EnvAPIKey             = "MVGEN_API_KEY"
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvStoryboardBackend  = "MVGEN_STORYBOARD_BACKEND"
	EnvStoryboardModel    = "MVGEN_STORYBOARD_MODEL"
	EnvLLMBaseURL         = "MVGEN_LLM_BASE_URL"
	EnvImageModel         = "MVGEN_IMAGE_MODEL"
	EnvImageBaseURL       = "MVGEN_IMAGE_BASE_URL"
	EnvProviderTimeout    = "MVGEN_PROVIDER_TIMEOUT"
	EnvProviderRPS        = "MVGEN_PROVIDER_RPS"
	EnvSceneDelay         = "MVGEN_SCENE_DELAY"
	EnvProtagonistDelay   = "MVGEN_PROTAGONIST_DELAY"
	EnvDefaultSceneCount  = "MVGEN_DEFAULT_SCENE_COUNT"
	EnvDefaultAspectRatio = "MVGEN_DEFAULT_ASPECT_RATIO"
	EnvOTelEnabled        = "MVGEN_OTEL_ENABLED"
	EnvOTelExporter       = "MVGEN_OTEL_EXPORTER"
	EnvOTelEndpoint       = "MVGEN_OTEL_ENDPOINT"
	EnvOTelSampling       = "MVGEN_OTEL_SAMPLING"
)

var (
	// ErrUnknownConfigField marks a YAML key that maps to no AppConfig field.
	ErrUnknownConfigField = errors.New("unknown config field")
	ErrMultipleDocuments  = errors.New("config file must hold exactly one YAML document")
	ErrUnsupportedFormat  = errors.New("unsupported config format")
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	dotenvPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty configPath means
// environment-only configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		dotenvPath: ".env",
		version:    version,
	}
}

// WithDotenv overrides the .env file consulted before environment parsing.
// An empty path disables .env loading.
func (l *Loader) WithDotenv(path string) *Loader {
	l.dotenvPath = path
	return l
}

// Path returns the YAML file path this loader reads (may be empty).
func (l *Loader) Path() string {
	return l.configPath
}

// Load resolves the configuration: Defaults -> .env -> File (strict) -> Env -> Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if err := l.loadDotenv(); err != nil {
		return cfg, fmt.Errorf("load dotenv: %w", err)
	}

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotenv populates the process environment from a .env file without
// overriding variables that are already set.
func (l *Loader) loadDotenv() error {
	if l.dotenvPath == "" {
		return nil
	}
	if _, err := os.Stat(l.dotenvPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(l.dotenvPath)
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %q (only .yaml and .yml)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)

	cfg.Server.ListenAddr = ParseString(EnvListen, cfg.Server.ListenAddr)
	cfg.Server.AllowedOrigins = ParseList(EnvCORSOrigins, cfg.Server.AllowedOrigins)
	cfg.Server.RateLimitRPM = ParseInt(EnvRateLimitRPM, cfg.Server.RateLimitRPM)
	cfg.Server.EnableCSRF = ParseBool(EnvCSRF, cfg.Server.EnableCSRF)
	cfg.Server.MaxConnections = ParseInt(EnvMaxConnections, cfg.Server.MaxConnections)

	cfg.Session.Backend = strings.ToLower(ParseString(EnvSessionBackend, cfg.Session.Backend))
	cfg.Session.MaxAge = ParseDuration(EnvSessionMaxAge, cfg.Session.MaxAge)
	cfg.Session.SweepInterval = ParseDuration(EnvSweepInterval, cfg.Session.SweepInterval)
	cfg.Session.RedisAddr = ParseString(EnvRedisAddr, cfg.Session.RedisAddr)
	cfg.Session.RedisPassword = ParseString(EnvRedisPassword, cfg.Session.RedisPassword)
	cfg.Session.RedisDB = ParseInt(EnvRedisDB, cfg.Session.RedisDB)
	cfg.Session.BadgerPath = ParseString(EnvBadgerPath, cfg.Session.BadgerPath)
	cfg.Session.SQLitePath = ParseString(EnvSQLitePath, cfg.Session.SQLitePath)

	cfg.Provider.APIKey = ParseStringWithAlias(EnvAPIKey, EnvGeminiAPIKey, cfg.Provider.APIKey)
	cfg.Provider.StoryboardBackend = strings.ToLower(ParseString(EnvStoryboardBackend, cfg.Provider.StoryboardBackend))
	cfg.Provider.StoryboardModel = ParseString(EnvStoryboardModel, cfg.Provider.StoryboardModel)
	cfg.Provider.LLMBaseURL = ParseString(EnvLLMBaseURL, cfg.Provider.LLMBaseURL)
	cfg.Provider.ImageModel = ParseString(EnvImageModel, cfg.Provider.ImageModel)
	cfg.Provider.ImageBaseURL = ParseString(EnvImageBaseURL, cfg.Provider.ImageBaseURL)
	cfg.Provider.RequestTimeout = ParseDuration(EnvProviderTimeout, cfg.Provider.RequestTimeout)
	cfg.Provider.RateLimitRPS = ParseFloat(EnvProviderRPS, cfg.Provider.RateLimitRPS)

	cfg.Pipeline.SceneDelay = ParseDuration(EnvSceneDelay, cfg.Pipeline.SceneDelay)
	cfg.Pipeline.ProtagonistDelay = ParseDuration(EnvProtagonistDelay, cfg.Pipeline.ProtagonistDelay)
	cfg.Pipeline.DefaultSceneCount = ParseInt(EnvDefaultSceneCount, cfg.Pipeline.DefaultSceneCount)
	cfg.Pipeline.DefaultAspectRatio = ParseString(EnvDefaultAspectRatio, cfg.Pipeline.DefaultAspectRatio)

	cfg.Telemetry.Enabled = ParseBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = strings.ToLower(ParseString(EnvOTelExporter, cfg.Telemetry.Exporter))
	cfg.Telemetry.Endpoint = ParseString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOTelSampling, cfg.Telemetry.SamplingRate)
}
