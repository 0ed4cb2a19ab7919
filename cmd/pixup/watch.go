// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/pixup/internal/config"
	xglog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/store"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload every image written into a directory",
		Long: "watch uploads images as they appear in <dir>. Files are submitted once " +
			"writes to them have been quiet for the configured debounce interval.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, args[0])
		},
	}
}

func runWatch(ctx context.Context, cfg config.AppConfig, dir string) error {
	logger := xglog.WithComponent("watch")

	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	g, gctx := errgroup.WithContext(ctx)
	p.background(gctx, g)

	outcomes := p.store.Subscribe("watch")
	g.Go(func() error {
		defer func() { _ = outcomes.Close() }()
		logOutcomes(gctx, outcomes, logger)
		return nil
	})

	deb := newDebouncer(cfg.Watch.Debounce, func(path string) {
		src, err := model.FileSource(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping file")
			return
		}
		if _, err := p.orch.Submit(gctx, []model.Source{src}); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("submit failed")
		}
	})
	defer deb.Stop()

	logger.Info().Str("event", "watch.started").Str("dir", dir).Msg("watching directory for images")

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !isWatchedImage(event.Name) {
					continue
				}
				logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("file changed")
				deb.Touch(event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Error().Err(err).Str("event", "watch.error").Msg("watcher error")
			}
		}
	})

	<-gctx.Done()
	deb.Stop()
	p.drain()
	logger.Info().Str("event", "watch.stopped").Msg("watcher stopped")
	return g.Wait()
}

func isWatchedImage(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := watchedExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

func logOutcomes(ctx context.Context, sub store.Subscription, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			rec := ev.Record
			if !rec.Status.IsTerminal() {
				continue
			}
			entry := logger.Info()
			if rec.Status != model.StatusSuccess {
				entry = logger.Warn().Str("reason", string(rec.Reason)).Str("detail", rec.Detail)
			}
			entry.Str(xglog.FieldUploadID, rec.ID).
				Str("file", rec.DisplayName).
				Str("status", rec.Status.String()).
				Str("location", rec.RemoteLocation).
				Msg("upload finished")
		}
	}
}

// debouncer calls fire once per path after delay has passed without another
// Touch for that path.
type debouncer struct {
	delay time.Duration
	fire  func(path string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.stopped || d.timers[path] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
	d.timers[path] = t
}

// Stop discards pending paths. It is safe to call more than once.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
