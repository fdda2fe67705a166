// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the assistant service configuration from the
// environment. main loads .env via godotenv before calling Load, so local
// development and container deployments use the same path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultPort            = "8777"
	DefaultUpstreamTimeout = 120 * time.Second
	DefaultHistoryLimit    = 18
)

// Config holds the runtime configuration of the assistant service.
type Config struct {
	Port            string
	AnthropicAPIKey string
	AnthropicModel  string
	DatabaseURL     string
	UpstreamTimeout time.Duration
	HistoryLimit    int
	AllowedOrigin   string
	OTLPEndpoint    string
}

// Load reads configuration from the environment. DATABASE_URL is required
// here; ANTHROPIC_API_KEY is validated when the model client is built so the
// error names the component that needs it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envOr("PORT", DefaultPort),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		UpstreamTimeout: DefaultUpstreamTimeout,
		HistoryLimit:    DefaultHistoryLimit,
		AllowedOrigin:   envOr("ALLOWED_ORIGIN", "*"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if v := os.Getenv("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT_SECONDS %q", v)
		}
		cfg.UpstreamTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT %q", v)
		}
		cfg.HistoryLimit = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
