// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ManuGH/pixup/internal/config"
	xglog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/progress"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errUploadsFailed signals a non-zero exit without an extra error line; the
// report already names the failed files.
var errUploadsFailed = errors.New("one or more uploads failed")

type uploadOptions struct {
	retries   int
	quiet     bool
	format    string
	quality   float64
	maxWidth  int
	maxHeight int
}

func newUploadCmd(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Compress and upload image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runUpload(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.retries, "retries", 0, "retry failed uploads up to N times")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print live progress")
	f.StringVar(&opts.format, "format", "", "output format (webp or jpeg)")
	f.Float64Var(&opts.quality, "quality", 0, "encoder quality in (0, 1]")
	f.IntVar(&opts.maxWidth, "max-width", 0, "maximum output width, 0 for unbounded")
	f.IntVar(&opts.maxHeight, "max-height", 0, "maximum output height, 0 for unbounded")
	return cmd
}

// apply overlays explicitly set flags on cfg and revalidates.
func (o *uploadOptions) apply(cmd *cobra.Command, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("format") {
		cfg.Transcode.Format, changed = o.format, true
	}
	if flags.Changed("quality") {
		cfg.Transcode.Quality, changed = o.quality, true
	}
	if flags.Changed("max-width") {
		cfg.Transcode.MaxWidth, changed = o.maxWidth, true
	}
	if flags.Changed("max-height") {
		cfg.Transcode.MaxHeight, changed = o.maxHeight, true
	}
	if !changed {
		return nil
	}
	return config.Validate(*cfg)
}

func runUpload(ctx context.Context, stdout, stderr io.Writer, cfg config.AppConfig, paths []string, opts *uploadOptions) error {
	sources := make([]model.Source, 0, len(paths))
	for _, path := range paths {
		src, err := model.FileSource(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	g, gctx := errgroup.WithContext(bgCtx)
	p.background(gctx, g)
	printer := &progressPrinter{w: stderr}
	if !opts.quiet {
		proj := progress.NewProjector(p.store)
		g.Go(func() error { return proj.Run(gctx, printer.print) })
	}

	ids, err := p.orch.Submit(ctx, sources)
	if err != nil {
		stopBackground()
		_ = g.Wait()
		return err
	}

	p.await(ctx)
	for round := 0; round < opts.retries && ctx.Err() == nil; round++ {
		if p.retryFailed(ctx, ids) == 0 {
			break
		}
		p.await(ctx)
	}

	stopBackground()
	bgErr := g.Wait()

	records := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := p.orch.Record(context.Background(), id)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if !opts.quiet {
		if sum, err := p.orch.Summary(context.Background()); err == nil {
			printer.print(sum)
		}
		fmt.Fprintln(stderr)
	}
	if err := printReport(stdout, records); err != nil {
		return err
	}

	if bgErr != nil {
		return bgErr
	}
	for _, rec := range records {
		if rec.Status != model.StatusSuccess {
			return errUploadsFailed
		}
	}
	return nil
}

// await blocks until the batch settles. An interrupt cancels what is running.
func (p *pipeline) await(ctx context.Context) {
	if err := p.orch.Wait(ctx); err != nil {
		p.logger.Info().Str("event", "upload.interrupted").Msg("interrupted, cancelling uploads")
		p.drain()
	}
}

// retryFailed restarts every retryable Error record and returns how many were
// restarted.
func (p *pipeline) retryFailed(ctx context.Context, ids []string) int {
	n := 0
	for _, id := range ids {
		rec, err := p.orch.Record(ctx, id)
		if err != nil || rec.Status != model.StatusError {
			continue
		}
		switch err := p.orch.Retry(ctx, id); {
		case err == nil:
			n++
		case errors.Is(err, model.ErrNotRetryable):
		default:
			p.logger.Warn().Err(err).Str(xglog.FieldUploadID, id).Msg("retry failed")
		}
	}
	return n
}

type progressPrinter struct {
	w    io.Writer
	last string
}

func (pp *progressPrinter) print(s progress.Summary) {
	line := formatSummary(s)
	if line == pp.last {
		return
	}
	pp.last = line
	fmt.Fprintf(pp.w, "\r%s", line)
}

func formatSummary(s progress.Summary) string {
	return fmt.Sprintf("%3d%%  %s / %s  queued %d  compressing %d  uploading %d  done %d  failed %d",
		s.GlobalProgress,
		humanize.Bytes(uint64(max(s.TotalSent, 0))),
		humanize.Bytes(uint64(max(s.TotalExpected, 0))),
		s.Counts[model.StatusQueued],
		s.Counts[model.StatusCompressing],
		s.Counts[model.StatusUploading],
		s.Counts[model.StatusSuccess],
		s.Counts[model.StatusError]+s.Counts[model.StatusCancelled],
	)
}

func printReport(w io.Writer, records []model.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFILE\tORIGINAL\tCOMPRESSED\tSAVED\tRESULT")
	for _, rec := range records {
		compressed, saved := "-", "-"
		if rec.CompressedSizeBytes != nil {
			compressed = humanize.Bytes(uint64(*rec.CompressedSizeBytes))
		}
		if pct, ok := rec.Reduction(); ok {
			saved = fmt.Sprintf("%d%%", pct)
		}
		result := rec.RemoteLocation
		if rec.Status != model.StatusSuccess {
			result = string(rec.Reason)
			if rec.Detail != "" {
				result += ": " + rec.Detail
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Status,
			rec.DisplayName,
			humanize.Bytes(uint64(max(rec.OriginalSizeBytes, 0))),
			compressed,
			saved,
			result,
		)
	}
	return tw.Flush()
}
