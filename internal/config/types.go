// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads pixup settings with the precedence ENV > YAML file > defaults.
package config

import "time"

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string

	Upload    UploadConfig
	Transcode TranscodeConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
	Notify    NotifyConfig
	Server    ServerConfig
	Watch     WatchConfig
}

type UploadConfig struct {
	Endpoint         string
	FieldName        string
	LocatorField     string
	Timeout          time.Duration
	ProgressInterval time.Duration
	MaxConcurrent    int
	BreakerThreshold int // 0 disables the endpoint circuit breaker
	BreakerCooldown  time.Duration
}

type TranscodeConfig struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
	Format    string
}

type MetricsConfig struct {
	Listen string // empty disables the metrics endpoint
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// NotifyConfig enables redis change notifications when RedisAddr is set.
type NotifyConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Channel       string
}

type ServerConfig struct {
	Listen         string
	DataDir        string
	PublicURL      string
	MaxUploadBytes int64
	RateLimit      int
	MaxConnections int
}

type WatchConfig struct {
	Debounce time.Duration
}

// FileConfig mirrors the YAML file. Pointer fields distinguish "unset" from a
// deliberate zero.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Upload struct {
		Endpoint         string `yaml:"endpoint,omitempty"`
		FieldName        string `yaml:"fieldName,omitempty"`
		LocatorField     string `yaml:"locatorField,omitempty"`
		Timeout          string `yaml:"timeout,omitempty"`
		ProgressInterval string `yaml:"progressInterval,omitempty"`
		MaxConcurrent    *int   `yaml:"maxConcurrent,omitempty"`
		BreakerThreshold *int   `yaml:"breakerThreshold,omitempty"`
		BreakerCooldown  string `yaml:"breakerCooldown,omitempty"`
	} `yaml:"upload,omitempty"`

	Transcode struct {
		MaxWidth  *int     `yaml:"maxWidth,omitempty"`
		MaxHeight *int     `yaml:"maxHeight,omitempty"`
		Quality   *float64 `yaml:"quality,omitempty"`
		Format    string   `yaml:"format,omitempty"`
	} `yaml:"transcode,omitempty"`

	Metrics struct {
		Listen string `yaml:"listen,omitempty"`
	} `yaml:"metrics,omitempty"`

	Telemetry struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
		Environment  string   `yaml:"environment,omitempty"`
	} `yaml:"telemetry,omitempty"`

	Notify struct {
		RedisAddr     string `yaml:"redisAddr,omitempty"`
		RedisPassword string `yaml:"redisPassword,omitempty"`
		RedisDB       *int   `yaml:"redisDB,omitempty"`
		Channel       string `yaml:"channel,omitempty"`
	} `yaml:"notify,omitempty"`

	Server struct {
		Listen         string `yaml:"listen,omitempty"`
		DataDir        string `yaml:"dataDir,omitempty"`
		PublicURL      string `yaml:"publicURL,omitempty"`
		MaxUploadSize  string `yaml:"maxUploadSize,omitempty"`
		RateLimit      *int   `yaml:"rateLimit,omitempty"`
		MaxConnections *int   `yaml:"maxConnections,omitempty"`
	} `yaml:"server,omitempty"`

	Watch struct {
		Debounce string `yaml:"debounce,omitempty"`
	} `yaml:"watch,omitempty"`
}
