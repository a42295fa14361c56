package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cdbs/internal/selection"
	"cdbs/internal/services"
	"cdbs/internal/services/cdbsapi"
	"cdbs/internal/upload"
	"cdbs/internal/uploader"
)

type uploadOptions struct {
	target       string
	message      string
	recursive    bool
	accept       string
	abandonAfter time.Duration
	strict       bool
	jsonOutput   bool
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files to a catalog object",
		Long: `Upload files to a catalog object.

Every file is sent to its own storage slot concurrently. Once all transfers
have finished, the files that made it are confirmed with the backend in a
single call. Press Ctrl+C to give up on unfinished files; the ones already
transferred are still confirmed.

Target kinds: ` + strings.Join(cdbsapi.TargetKinds(), ", "),
		Example: `  cdbs upload --target component:4b7a6f0e-1c2d-4e5f-8a9b-0c1d2e3f4a5b drawing.png
  cdbs upload --target fileset:<uuid> --recursive --accept 'image/*' ./renders`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := cdbsapi.ParseTarget(opts.target)
			if err != nil {
				return err
			}
			accept := cfg.Upload.Accept
			if cmd.Flags().Changed("accept") {
				accept = strings.TrimSpace(opts.accept)
			}
			files, err := selection.Select(args, selection.Options{
				Recursive: opts.recursive,
				MaxFiles:  cfg.Upload.MaxFiles,
				Accept:    accept,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !opts.jsonOutput {
				fmt.Fprintf(out, "Uploading %d file(s) (%s) to %s\n", len(files), humanBytes(selection.TotalSize(files)), target)
			}

			up, err := ctx.newUploader(uploader.WithProgress(progressPrinter(out, opts.jsonOutput)))
			if err != nil {
				return err
			}
			runCtx, stop := abandonOnSignal(cmd.Context(), up, opts.abandonAfter, cmd.ErrOrStderr())
			result, runErr := up.Upload(runCtx, uploader.Request{
				Target:        target,
				Files:         files,
				CommitMessage: opts.message,
			})
			stop()
			return reportResult(cmd, result, runErr, opts.jsonOutput, opts.strict)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Catalog object as <kind>:<uuid>")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Commit message recorded with the files")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Upload the files inside directory arguments")
	cmd.Flags().StringVar(&opts.accept, "accept", "", "Only select files of this MIME type, e.g. image/* (overrides upload.accept)")
	cmd.Flags().DurationVar(&opts.abandonAfter, "abandon-after", 0, "Give up on unfinished files after this long and confirm the rest")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any file failed")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the batch result as JSON")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var message string
	var strict bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "retry <batch-id>",
		Short: "Upload the failed files of a previous batch again",
		Long: `Upload the failed files of a previous batch again.

The files are read from the paths recorded with the original batch and sent to
the same target. The batch id may be abbreviated to a unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			out := cmd.OutOrStdout()
			up, err := ctx.newUploader(uploader.WithProgress(progressPrinter(out, jsonOutput)))
			if err != nil {
				return err
			}
			runCtx, stop := abandonOnSignal(cmd.Context(), up, 0, cmd.ErrOrStderr())
			result, runErr := up.Retry(runCtx, args[0], message)
			stop()
			return reportResult(cmd, result, runErr, jsonOutput, strict)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (defaults to the original batch message)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any file failed")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the batch result as JSON")
	return cmd
}

// abandoner gives up on the unfinished files of a running batch.
type abandoner interface {
	Abandon(reason string) int
}

// abandonOnSignal returns the context an upload should run under. The first
// SIGINT/SIGTERM abandons the running batch so the files already transferred
// are still confirmed; a second signal, or one that arrives while no files are
// in flight, cancels the context. After limit the batch is abandoned the same
// way.
func abandonOnSignal(parent context.Context, up abandoner, limit time.Duration, errOut io.Writer) (context.Context, func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	ctx, stop := watchInterrupts(parent, up, limit, errOut, signals)
	return ctx, func() {
		signal.Stop(signals)
		stop()
	}
}

func watchInterrupts(parent context.Context, up abandoner, limit time.Duration, errOut io.Writer, signals <-chan os.Signal) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	if limit > 0 {
		timer = time.NewTimer(limit)
		timeout = timer.C
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		abandoned := false
		for {
			select {
			case sig := <-signals:
				if !abandoned && up.Abandon("interrupted by "+sig.String()) > 0 {
					abandoned = true
					fmt.Fprintf(errOut, "Received %s, abandoning unfinished files (repeat to cancel)...\n", sig)
					continue
				}
				fmt.Fprintf(errOut, "Received %s, cancelling upload...\n", sig)
				cancel()
				return
			case <-timeout:
				timeout = nil
				if up.Abandon(fmt.Sprintf("no result after %s", limit)) > 0 {
					abandoned = true
					fmt.Fprintf(errOut, "No result after %s, abandoning unfinished files...\n", limit)
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return ctx, func() {
		if timer != nil {
			timer.Stop()
		}
		close(done)
		wg.Wait()
		cancel()
	}
}

func progressPrinter(out io.Writer, quiet bool) func(uploader.Event) {
	if quiet {
		return nil
	}
	colorize := shouldColorize(out)
	var mu sync.Mutex
	return func(e uploader.Event) {
		if e.Status != upload.StatusCompleted && e.Status != upload.StatusFailed {
			return
		}
		detail := ""
		if e.Err != nil {
			detail = e.Err.Error()
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, renderStatusLine(e.Filename, fileStatusKind(e.Status), detail, colorize))
	}
}

func reportResult(cmd *cobra.Command, result *uploader.Result, runErr error, jsonOutput, strict bool) error {
	if result == nil {
		return runErr
	}
	if jsonOutput {
		if err := writeJSON(cmd, newResultView(result)); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), result)
	}
	if runErr != nil {
		return runErr
	}
	if strict && result.Failed() > 0 {
		return &exitError{
			code: services.ExitFailure,
			err:  fmt.Errorf("%d of %d file(s) failed in batch %s", result.Failed(), len(result.Files), result.BatchID),
		}
	}
	return nil
}

func printResult(out io.Writer, result *uploader.Result) {
	o := result.Outcome
	fmt.Fprintf(out, "Batch %s: %s\n", result.BatchID, result.Status())
	fmt.Fprintf(out, "  %d succeeded, %d failed, %d confirmed in %s\n",
		result.Succeeded(), result.Failed(), o.Confirmed, result.Elapsed().Round(time.Millisecond))
	if o.Abandoned {
		fmt.Fprintln(out, "  Unfinished files were abandoned.")
	}
	if o.CountMismatch() {
		fmt.Fprintf(out, "  Warning: backend confirmed %d of %d transferred files.\n", o.Confirmed, len(o.Succeeded))
	}
	if result.Failed() > 0 {
		fmt.Fprintf(out, "  Run 'cdbs retry %s' to re-send the failed files.\n", shortID(result.BatchID.String()))
	}
	var confirmErr *upload.ConfirmationFailure
	if errors.As(o.Err, &confirmErr) {
		fmt.Fprintln(out, "  Confirmation failed; transferred files are not attached yet.")
	}
}
