// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/pixup/internal/config"
	xglog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/notify"
	"github.com/ManuGH/pixup/internal/telemetry"
	"github.com/ManuGH/pixup/internal/transcoder"
	"github.com/ManuGH/pixup/internal/transport"
	"github.com/ManuGH/pixup/internal/upload/orchestrator"
	"github.com/ManuGH/pixup/internal/upload/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// pipeline is the client-side object graph shared by upload and watch.
type pipeline struct {
	cfg       config.AppConfig
	store     *store.MemoryStore
	orch      *orchestrator.Orchestrator
	tracing   *telemetry.Provider
	publisher *notify.RedisPublisher
	logger    zerolog.Logger
}

func newPipeline(ctx context.Context, cfg config.AppConfig) (*pipeline, error) {
	logger := xglog.WithComponent("pipeline")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "pixup",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	tr, err := transport.New(transport.Config{
		Endpoint:         cfg.Upload.Endpoint,
		FieldName:        cfg.Upload.FieldName,
		LocatorField:     cfg.Upload.LocatorField,
		Timeout:          cfg.Upload.Timeout,
		ProgressInterval: cfg.Upload.ProgressInterval,
		BreakerThreshold: cfg.Upload.BreakerThreshold,
		BreakerCooldown:  cfg.Upload.BreakerCooldown,
		Logger:           xglog.WithComponent("transport"),
	})
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, err
	}

	st := store.NewMemoryStore()
	orch, err := orchestrator.New(orchestrator.Deps{
		Store:         st,
		Transcoder:    transcoder.New(xglog.WithComponent("transcoder")),
		Transport:     tr,
		Constraints:   cfg.Transcode.Constraints(),
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		Logger:        xglog.WithComponent("orchestrator"),
	})
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, err
	}

	p := &pipeline{cfg: cfg, store: st, orch: orch, tracing: tracing, logger: logger}

	if cfg.Notify.RedisAddr != "" {
		pub, err := notify.NewRedisPublisher(notify.RedisConfig{
			Addr:     cfg.Notify.RedisAddr,
			Password: cfg.Notify.RedisPassword,
			DB:       cfg.Notify.RedisDB,
			Channel:  cfg.Notify.Channel,
		}, xglog.WithComponent("notify"))
		if err != nil {
			// Notifications are best-effort; uploads proceed without them.
			logger.Warn().Err(err).Str("event", "notify.disabled").Msg("redis unavailable, change notifications disabled")
		} else {
			p.publisher = pub
		}
	}
	return p, nil
}

// background starts the metrics endpoint and the notification publisher. They
// stop when ctx is done.
func (p *pipeline) background(ctx context.Context, g *errgroup.Group) {
	serveMetrics(ctx, g, p.cfg.Metrics.Listen, p.logger)

	if p.publisher != nil {
		sub := p.store.Subscribe("notify")
		g.Go(func() error {
			defer func() { _ = sub.Close() }()
			return p.publisher.Run(ctx, sub)
		})
	}
}

// drain cancels whatever is still running and waits for it.
func (p *pipeline) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.orch.Shutdown(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("uploads still running at shutdown")
	}
}

func (p *pipeline) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if p.publisher != nil {
		_ = p.publisher.Close()
	}
	if err := p.tracing.Shutdown(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

// serveMetrics exposes /metrics on listen until ctx is done. Empty listen
// disables it.
func serveMetrics(ctx context.Context, g *errgroup.Group, listen string, logger zerolog.Logger) {
	if listen == "" {
		return
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
