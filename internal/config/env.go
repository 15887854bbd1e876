// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
)

// sensitiveMarkers flag variables whose values never reach the log.
var sensitiveMarkers = []string{"token", "password", "secret", "api_key"}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, m := range sensitiveMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// fromEnv reads key and converts it with parse. Unset or empty variables
// yield def; unparsable values yield def with a warning.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	logger := log.WithComponent("config")
	if !ok || raw == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return def
	}

	v, err := parse(raw)
	if err != nil {
		logger.Warn().Err(err).
			Str("key", key).
			Str("value", raw).
			Str("default", fmt.Sprint(def)).
			Msg("invalid environment value, using default")
		return def
	}

	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("using environment variable")
	return v
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func parseList(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}

func ParseString(key, def string) string {
	return fromEnv(key, def, func(s string) (string, error) { return s, nil })
}

// ParseStringWithAlias prefers key and falls back to alias, then def.
func ParseStringWithAlias(key, alias, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return ParseString(key, def)
	}
	return ParseString(alias, def)
}

func ParseInt(key string, def int) int { return fromEnv(key, def, strconv.Atoi) }

// ParseDuration accepts Go duration syntax such as "1500ms" or "2m".
func ParseDuration(key string, def time.Duration) time.Duration {
	return fromEnv(key, def, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0, yes/no and on/off.
func ParseBool(key string, def bool) bool { return fromEnv(key, def, parseBool) }

func ParseFloat(key string, def float64) float64 {
	return fromEnv(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// ParseList reads a comma separated list; blank entries are dropped.
func ParseList(key string, def []string) []string { return fromEnv(key, def, parseList) }
