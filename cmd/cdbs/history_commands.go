package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cdbs/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent upload batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			batches, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				views := make([]batchView, 0, len(batches))
				for _, b := range batches {
					views = append(views, newBatchView(b, nil))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No uploads recorded")
				return nil
			}
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					shortID(b.ID),
					humanize.Time(b.StartedAt),
					b.Target,
					string(b.Status),
					strconv.Itoa(b.Dispatched),
					strconv.Itoa(b.Succeeded),
					strconv.Itoa(b.Failed),
					strconv.Itoa(b.Confirmed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Batch", "Started", "Target", "Status", "Files", "OK", "Failed", "Confirmed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the files of one upload batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			batch, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := store.Files(cmd.Context(), batch.ID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, newBatchView(*batch, files))
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Batch "+batch.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Status", batchStatusKind(batch.Status), batchSummary(batch), colorize))
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Target:", batch.Target)
			if batch.CommitMessage != "" {
				fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Message:", batch.CommitMessage)
			}
			if batch.RetryOf != "" {
				fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Retry of:", batch.RetryOf)
			}
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Started:", batch.StartedAt.Local().Format(time.DateTime))
			if batch.Error != "" {
				fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Error:", batch.Error)
			}
			fmt.Fprintln(out)

			var total int64
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				total += f.SizeBytes
				rows = append(rows, []string{f.Filename, humanBytes(f.SizeBytes), string(f.Status), f.Error})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Size", "Status", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				[]string{fmt.Sprintf("%d files", len(files)), humanBytes(total), "", ""},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func batchSummary(b *history.Batch) string {
	summary := fmt.Sprintf("%s (%d of %d succeeded, %d confirmed)", b.Status, b.Succeeded, b.Dispatched, b.Confirmed)
	if b.Finished() && !b.FinishedAt.IsZero() {
		summary += fmt.Sprintf(" in %s", b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond))
	}
	return summary
}
