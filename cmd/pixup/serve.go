// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/pixup/internal/config"
	xglog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/remotestore"
	"github.com/ManuGH/pixup/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen, dataDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload receiver",
		Long: "serve runs an HTTP endpoint that accepts multipart image uploads, stores them " +
			"on disk and answers with a JSON document carrying the public URL.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if dataDir != "" {
				cfg.Server.DataDir = dataDir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "storage directory, overrides server.dataDir")
	return cmd
}

func runServe(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("serve")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "pixup-remotestore",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tracing.Shutdown(context.Background()) }()

	srv, err := remotestore.New(remotestore.Config{
		Listen:         cfg.Server.Listen,
		DataDir:        cfg.Server.DataDir,
		PublicURL:      cfg.Server.PublicURL,
		FieldName:      cfg.Upload.FieldName,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimit:      cfg.Server.RateLimit,
		MaxConnections: cfg.Server.MaxConnections,
		Version:        cfg.Version,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	serveMetrics(gctx, g, cfg.Metrics.Listen, logger)

	g.Go(func() error {
		logger.Info().
			Str("event", "serve.started").
			Str("addr", cfg.Server.Listen).
			Str("data_dir", cfg.Server.DataDir).
			Msg("upload receiver listening")
		return srv.ListenAndServe(gctx)
	})
	return g.Wait()
}
