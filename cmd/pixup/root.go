// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"strings"

	"github.com/ManuGH/pixup/internal/config"
	xglog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/version"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pixup",
		Short:         "Compress images and upload them",
		Long:          "pixup resizes and re-encodes images, then uploads the derivatives with live progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Safe defaults until the configuration has been loaded.
			xglog.Configure(xglog.Config{
				Level:   "info",
				Service: "pixup",
				Version: version.Version,
				Output:  cmd.ErrOrStderr(),
			})
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newUploadCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves configuration with precedence ENV > file > defaults and
// reconfigures the global logger from it.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.AppConfig, error) {
	logger := xglog.WithComponent("cli")

	path := strings.TrimSpace(o.configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
		Output:  cmd.ErrOrStderr(),
	})

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	cliLogger := xglog.WithComponent("cli")
	cliLogger.Debug().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("loaded configuration")
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixup %s\n", version.String())
		},
	}
}
