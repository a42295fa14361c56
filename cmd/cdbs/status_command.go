package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cdbs/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, local state, and backend reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configPath := ctx.configPath
			if !ctx.configExists {
				configPath += " (not found, using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Max concurrent", statusInfo, fmt.Sprintf("%d", cfg.Upload.MaxConcurrent), colorize))
			fmt.Fprintln(out, renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if cfg.History.Enabled {
				store, err := ctx.historyStore()
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("History database", statusError, err.Error(), colorize))
				} else if recent, err := store.List(cmd.Context(), 1); err == nil && len(recent) > 0 {
					last := recent[0]
					fmt.Fprintln(out, renderStatusLine("Last batch", batchStatusKind(last.Status),
						fmt.Sprintf("%s %s (%d/%d succeeded)", shortID(last.ID), last.Status, last.Succeeded, last.Dispatched), colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
