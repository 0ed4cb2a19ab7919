// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/pixup/internal/transcoder"
	"github.com/rs/zerolog"
)

// Validate reports every problem in cfg at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel", "unknown level %q", cfg.LogLevel)
	}

	if err := validateHTTPURL(cfg.Upload.Endpoint); err != nil {
		add("upload.endpoint", "%v", err)
	}
	if strings.TrimSpace(cfg.Upload.FieldName) == "" {
		add("upload.fieldName", "must not be empty")
	}
	if strings.TrimSpace(cfg.Upload.LocatorField) == "" {
		add("upload.locatorField", "must not be empty")
	}
	if cfg.Upload.Timeout < 0 {
		add("upload.timeout", "must not be negative")
	}
	if cfg.Upload.ProgressInterval < 0 {
		add("upload.progressInterval", "must not be negative")
	}
	if cfg.Upload.BreakerThreshold < 0 {
		add("upload.breakerThreshold", "must not be negative")
	}
	if cfg.Upload.BreakerCooldown < 0 {
		add("upload.breakerCooldown", "must not be negative")
	}
	if cfg.Upload.MaxConcurrent < 0 {
		add("upload.maxConcurrent", "must not be negative (0 means unlimited), got %d", cfg.Upload.MaxConcurrent)
	}

	if cfg.Transcode.MaxWidth < 0 {
		add("transcode.maxWidth", "must not be negative")
	}
	if cfg.Transcode.MaxHeight < 0 {
		add("transcode.maxHeight", "must not be negative")
	}
	if cfg.Transcode.Quality <= 0 || cfg.Transcode.Quality > 1 {
		add("transcode.quality", "must be in (0, 1], got %g", cfg.Transcode.Quality)
	}
	if _, err := transcoder.ParseFormat(cfg.Transcode.Format); err != nil {
		add("transcode.format", "%v", err)
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter", "must be grpc or http, got %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint", "required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate", "must be in [0, 1], got %g", cfg.Telemetry.SamplingRate)
	}

	if cfg.Notify.RedisDB < 0 {
		add("notify.redisDB", "must not be negative")
	}

	if cfg.Server.MaxUploadBytes <= 0 {
		add("server.maxUploadBytes", "must be positive")
	}
	if cfg.Server.RateLimit < 0 {
		add("server.rateLimit", "must not be negative")
	}
	if cfg.Server.MaxConnections < 0 {
		add("server.maxConnections", "must not be negative")
	}
	if cfg.Server.PublicURL != "" {
		if err := validateHTTPURL(cfg.Server.PublicURL); err != nil {
			add("server.publicURL", "%v", err)
		}
	}

	if cfg.Watch.Debounce < 0 {
		add("watch.debounce", "must not be negative")
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Constraints converts the transcode section. Call after Validate.
func (c TranscodeConfig) Constraints() transcoder.Constraints {
	f, _ := transcoder.ParseFormat(c.Format)
	return transcoder.Constraints{
		MaxWidth:  c.MaxWidth,
		MaxHeight: c.MaxHeight,
		Quality:   c.Quality,
		Format:    f,
	}
}
