package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sermoncast/internal/scratch"
)

func newScratchCommand(ctx *commandContext) *cobra.Command {
	scratchCmd := &cobra.Command{
		Use:   "scratch",
		Short: "Inspect and clean per-run working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := scratch.List(cfg.JobScratchDir())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No run directories")
				return nil
			}
			var total uint64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				total += uint64(dir.Size)
				rows = append(rows, []string{dir.Name, humanize.Time(dir.ModTime), humanize.Bytes(uint64(dir.Size))})
			}
			fmt.Fprint(out, renderTable([]string{"Directory", "Modified", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			fmt.Fprintf(out, "%d directories, %s\n", len(dirs), humanize.Bytes(total))
			return nil
		},
	}
	scratchCmd.AddCommand(newScratchCleanCommand(ctx))
	return scratchCmd
}

func newScratchCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove run directories older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = time.Duration(cfg.Workflow.ScratchRetentionHours) * time.Hour
			}
			sweep, err := scratch.CleanStale(cmd.Context(), cfg.JobScratchDir(), olderThan, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, failure := range sweep.Failed {
				fmt.Fprintf(out, "Could not remove %s: %v\n", failure.Path, failure.Err)
			}
			fmt.Fprintf(out, "Removed %d run directories\n", len(sweep.Removed))
			if len(sweep.Failed) > 0 {
				return fmt.Errorf("%d run directories could not be removed", len(sweep.Failed))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold (defaults to workflow.scratch_retention_hours)")
	return cmd
}
