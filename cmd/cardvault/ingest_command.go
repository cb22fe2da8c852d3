package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cardvault/internal/bulk"
	"cardvault/internal/library"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var variant string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Refresh the card cache from a bulk dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				started := time.Now()
				reporter := newIngestReporter(cmd, quiet)

				result, err := svc.IngestBulk(cmd.Context(), variant, reporter.observe)
				reporter.finish()
				if err != nil {
					return fmt.Errorf("ingest failed during %s: %w", result.Stage, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s cards from %s in %s\n",
					humanize.Comma(int64(result.Records)), result.Variant,
					time.Since(started).Round(time.Second))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "Bulk dataset variant (defaults to the configured one)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

// ingestReporter renders pipeline progress as a terminal bar, falling back
// to stage announcements when stderr is not a terminal.
type ingestReporter struct {
	cmd   *cobra.Command
	quiet bool
	tty   bool

	stage bulk.Stage
	bar   *progressbar.ProgressBar
}

func newIngestReporter(cmd *cobra.Command, quiet bool) *ingestReporter {
	return &ingestReporter{
		cmd:   cmd,
		quiet: quiet,
		tty:   isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

func (r *ingestReporter) observe(p bulk.Progress) {
	if r.quiet {
		return
	}
	if p.Stage != r.stage {
		r.enterStage(p)
	}

	if r.bar == nil {
		return
	}
	switch p.Stage {
	case bulk.StageDownloading:
		if p.BytesTotal > 0 {
			r.bar.ChangeMax64(p.BytesTotal)
		}
		_ = r.bar.Set64(p.BytesReceived)
	case bulk.StageParsing:
		if p.RecordsTotal > 0 {
			r.bar.ChangeMax(p.RecordsTotal)
		}
		_ = r.bar.Set(p.RecordsProcessed)
	}
}

func (r *ingestReporter) enterStage(p bulk.Progress) {
	r.finish()
	r.stage = p.Stage

	out := r.cmd.ErrOrStderr()
	switch p.Stage {
	case bulk.StageFetchingManifest:
		fmt.Fprintln(out, "Fetching bulk manifest...")
	case bulk.StageDownloading:
		if r.tty {
			r.bar = progressbar.NewOptions64(max(p.BytesTotal, 1),
				progressbar.OptionSetDescription("Downloading"),
				progressbar.OptionSetWriter(out),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)
		} else {
			fmt.Fprintln(out, "Downloading dataset...")
		}
	case bulk.StageParsing:
		if r.tty {
			r.bar = progressbar.NewOptions(max(p.RecordsTotal, 1),
				progressbar.OptionSetDescription("Parsing"),
				progressbar.OptionSetWriter(out),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		} else {
			fmt.Fprintln(out, "Parsing dataset...")
		}
	}
}

func (r *ingestReporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}
