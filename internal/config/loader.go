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
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultEndpoint         = "http://localhost:3333/uploads"
	DefaultFieldName        = "file"
	DefaultLocatorField     = "url"
	DefaultTimeout          = 60 * time.Second
	DefaultProgressInterval = 50 * time.Millisecond
	DefaultMaxConcurrent    = 0
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
	DefaultMaxWidth         = 800
	DefaultMaxHeight        = 800
	DefaultQuality          = 0.8
	DefaultFormat           = "webp"
	DefaultServerListen     = ":3333"
	DefaultDataDir          = "./data"
	DefaultMaxUploadBytes   = 32 << 20
	DefaultRateLimit        = 120
	DefaultMaxConnections   = 256
	DefaultNotifyChannel    = "pixup:uploads"
	DefaultWatchDebounce    = 500 * time.Millisecond
)

// Loader resolves configuration from defaults, an optional YAML file and the
// PIXUP_* environment.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every PIXUP_* key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load builds the configuration with precedence ENV > file > defaults and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}
	l.setDefaults(&cfg)

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := l.mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.Version = l.version
	cfg.LogLevel = "info"
	cfg.LogService = "pixup"

	cfg.Upload = UploadConfig{
		Endpoint:         DefaultEndpoint,
		FieldName:        DefaultFieldName,
		LocatorField:     DefaultLocatorField,
		Timeout:          DefaultTimeout,
		ProgressInterval: DefaultProgressInterval,
		MaxConcurrent:    DefaultMaxConcurrent,
		BreakerThreshold: DefaultBreakerThreshold,
		BreakerCooldown:  DefaultBreakerCooldown,
	}
	cfg.Transcode = TranscodeConfig{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
		Format:    DefaultFormat,
	}
	cfg.Telemetry = TelemetryConfig{
		Exporter:     "grpc",
		Endpoint:     "localhost:4317",
		SamplingRate: 1.0,
		Environment:  "development",
	}
	cfg.Notify = NotifyConfig{Channel: DefaultNotifyChannel}
	cfg.Server = ServerConfig{
		Listen:         DefaultServerListen,
		DataDir:        DefaultDataDir,
		MaxUploadBytes: DefaultMaxUploadBytes,
		RateLimit:      DefaultRateLimit,
		MaxConnections: DefaultMaxConnections,
	}
	cfg.Watch = WatchConfig{Debounce: DefaultWatchDebounce}
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only .yaml/.yml supported)", ext)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	data = []byte(expandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return &fc, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: multiple YAML documents are not supported", path)
	}
	return &fc, nil
}

func (l *Loader) mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.LogService, src.LogService)

	setString(&dst.Upload.Endpoint, src.Upload.Endpoint)
	setString(&dst.Upload.FieldName, src.Upload.FieldName)
	setString(&dst.Upload.LocatorField, src.Upload.LocatorField)
	if err := setDuration(&dst.Upload.Timeout, "upload.timeout", src.Upload.Timeout); err != nil {
		return err
	}
	if err := setDuration(&dst.Upload.ProgressInterval, "upload.progressInterval", src.Upload.ProgressInterval); err != nil {
		return err
	}
	setPtr(&dst.Upload.MaxConcurrent, src.Upload.MaxConcurrent)
	setPtr(&dst.Upload.BreakerThreshold, src.Upload.BreakerThreshold)
	if err := setDuration(&dst.Upload.BreakerCooldown, "upload.breakerCooldown", src.Upload.BreakerCooldown); err != nil {
		return err
	}

	setPtr(&dst.Transcode.MaxWidth, src.Transcode.MaxWidth)
	setPtr(&dst.Transcode.MaxHeight, src.Transcode.MaxHeight)
	setPtr(&dst.Transcode.Quality, src.Transcode.Quality)
	setString(&dst.Transcode.Format, src.Transcode.Format)

	setString(&dst.Metrics.Listen, src.Metrics.Listen)

	setPtr(&dst.Telemetry.Enabled, src.Telemetry.Enabled)
	setString(&dst.Telemetry.Exporter, src.Telemetry.Exporter)
	setString(&dst.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setPtr(&dst.Telemetry.SamplingRate, src.Telemetry.SamplingRate)
	setString(&dst.Telemetry.Environment, src.Telemetry.Environment)

	setString(&dst.Notify.RedisAddr, src.Notify.RedisAddr)
	setString(&dst.Notify.RedisPassword, src.Notify.RedisPassword)
	setPtr(&dst.Notify.RedisDB, src.Notify.RedisDB)
	setString(&dst.Notify.Channel, src.Notify.Channel)

	setString(&dst.Server.Listen, src.Server.Listen)
	setString(&dst.Server.DataDir, src.Server.DataDir)
	setString(&dst.Server.PublicURL, src.Server.PublicURL)
	if src.Server.MaxUploadSize != "" {
		n, err := parseByteSize(src.Server.MaxUploadSize)
		if err != nil {
			return fmt.Errorf("server.maxUploadSize: %w", err)
		}
		dst.Server.MaxUploadBytes = n
	}
	setPtr(&dst.Server.RateLimit, src.Server.RateLimit)
	setPtr(&dst.Server.MaxConnections, src.Server.MaxConnections)

	return setDuration(&dst.Watch.Debounce, "watch.debounce", src.Watch.Debounce)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("PIXUP_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("PIXUP_LOG_SERVICE", cfg.LogService)

	cfg.Upload.Endpoint = l.envString("PIXUP_UPLOAD_ENDPOINT", cfg.Upload.Endpoint)
	cfg.Upload.FieldName = l.envString("PIXUP_UPLOAD_FIELD", cfg.Upload.FieldName)
	cfg.Upload.LocatorField = l.envString("PIXUP_LOCATOR_FIELD", cfg.Upload.LocatorField)
	cfg.Upload.Timeout = l.envDuration("PIXUP_UPLOAD_TIMEOUT", cfg.Upload.Timeout)
	cfg.Upload.ProgressInterval = l.envDuration("PIXUP_PROGRESS_INTERVAL", cfg.Upload.ProgressInterval)
	cfg.Upload.MaxConcurrent = l.envInt("PIXUP_MAX_CONCURRENT", cfg.Upload.MaxConcurrent)
	cfg.Upload.BreakerThreshold = l.envInt("PIXUP_BREAKER_THRESHOLD", cfg.Upload.BreakerThreshold)
	cfg.Upload.BreakerCooldown = l.envDuration("PIXUP_BREAKER_COOLDOWN", cfg.Upload.BreakerCooldown)

	cfg.Transcode.MaxWidth = l.envInt("PIXUP_MAX_WIDTH", cfg.Transcode.MaxWidth)
	cfg.Transcode.MaxHeight = l.envInt("PIXUP_MAX_HEIGHT", cfg.Transcode.MaxHeight)
	cfg.Transcode.Quality = l.envFloat("PIXUP_QUALITY", cfg.Transcode.Quality)
	cfg.Transcode.Format = l.envString("PIXUP_OUTPUT_FORMAT", cfg.Transcode.Format)

	cfg.Metrics.Listen = l.envString("PIXUP_METRICS_LISTEN", cfg.Metrics.Listen)

	cfg.Telemetry.Enabled = l.envBool("PIXUP_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("PIXUP_TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("PIXUP_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("PIXUP_TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("PIXUP_TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)

	cfg.Notify.RedisAddr = l.envString("PIXUP_REDIS_ADDR", cfg.Notify.RedisAddr)
	cfg.Notify.RedisPassword = l.envString("PIXUP_REDIS_PASSWORD", cfg.Notify.RedisPassword)
	cfg.Notify.RedisDB = l.envInt("PIXUP_REDIS_DB", cfg.Notify.RedisDB)
	cfg.Notify.Channel = l.envString("PIXUP_REDIS_CHANNEL", cfg.Notify.Channel)

	cfg.Server.Listen = l.envString("PIXUP_SERVER_LISTEN", cfg.Server.Listen)
	cfg.Server.DataDir = l.envString("PIXUP_DATA_DIR", cfg.Server.DataDir)
	cfg.Server.PublicURL = l.envString("PIXUP_PUBLIC_URL", cfg.Server.PublicURL)
	cfg.Server.MaxUploadBytes = l.envBytes("PIXUP_MAX_UPLOAD_BYTES", cfg.Server.MaxUploadBytes)
	cfg.Server.RateLimit = l.envInt("PIXUP_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.MaxConnections = l.envInt("PIXUP_MAX_CONNECTIONS", cfg.Server.MaxConnections)

	cfg.Watch.Debounce = l.envDuration("PIXUP_WATCH_DEBOUNCE", cfg.Watch.Debounce)
}

func (l *Loader) consume(key string) { l.ConsumedEnvKeys[key] = struct{}{} }

func (l *Loader) envString(key, def string) string {
	l.consume(key)
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.consume(key)
	return ParseInt(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.consume(key)
	return ParseBool(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.consume(key)
	return ParseFloat(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.consume(key)
	return ParseDuration(key, def)
}

func (l *Loader) envBytes(key string, def int64) int64 {
	l.consume(key)
	return ParseBytes(key, def)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
