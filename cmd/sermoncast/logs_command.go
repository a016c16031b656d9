package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sermoncast/internal/logging"
	"sermoncast/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var jobID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines < 0 {
				return errors.New("--lines must not be negative")
			}
			if cmd.Flags().Changed("job") && jobID <= 0 {
				return errors.New("--job must be a positive job id")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.FilePath(cfg)
			if path == "" {
				return errors.New("paths.log_dir is not set")
			}

			var filter *logs.JobFilter
			if jobID > 0 {
				filter = logs.NewJobFilter(jobID)
			}
			runCtx := cmd.Context()
			if follow {
				var cancel context.CancelFunc
				runCtx, cancel = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
			}
			return streamLog(runCtx, cmd.OutOrStdout(), path, lines, follow, filter)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Only show entries for this job id")
	return cmd
}

func streamLog(ctx context.Context, out io.Writer, path string, lines int, follow bool, filter *logs.JobFilter) error {
	req := logs.Request{Offset: -1, Lines: lines}
	if filter != nil {
		// the window is applied after filtering, so read the whole file
		req.Lines = 0
		req.Offset = 0
	}
	chunk, err := logs.Tail(ctx, path, req)
	if err != nil {
		return err
	}
	printed := chunk.Lines
	if filter != nil {
		printed = filter.Apply(printed)
		if len(printed) > lines {
			printed = printed[len(printed)-lines:]
		}
	}
	writeLines(out, printed)
	if !follow {
		return nil
	}

	offset := chunk.Offset
	for {
		chunk, err := logs.Tail(ctx, path, logs.Request{Offset: offset, Wait: followWait})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("follow log: %w", err)
		}
		offset = chunk.Offset
		next := chunk.Lines
		if filter != nil {
			next = filter.Apply(next)
		}
		writeLines(out, next)
	}
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
