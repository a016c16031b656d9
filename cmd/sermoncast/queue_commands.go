package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
	"sermoncast/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := api.NewJobService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := api.NewJobService(store).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Asset", "Kind", "Status", "Stage", "Progress", "Updated"},
					buildQueueListRows(api.SortJobsNewestFirst(jobs)),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(store).Describe(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", ids[0])
				}
				writeJobDetail(cmd.OutOrStdout(), *job)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed jobs to pending (all failed jobs when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					count, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d failed jobs\n", count)
					return nil
				}
				result, err := api.NewJobService(store).RetryFailedJobsByID(cmd.Context(), ids)
				if err != nil {
					return err
				}
				for _, item := range result.Jobs {
					switch item.Outcome {
					case api.RetryJobUpdated:
						fmt.Fprintf(out, "Job %d: retried\n", item.ID)
					case api.RetryJobNotFound:
						fmt.Fprintf(out, "Job %d: not found\n", item.ID)
					case api.RetryJobNotFailed:
						fmt.Fprintf(out, "Job %d: not failed\n", item.ID)
					}
				}
				fmt.Fprintf(out, "Retried %d of %d jobs\n", result.UpdatedCount, len(ids))
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id...>",
		Short: "Delete jobs that are not processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				result, err := api.NewJobService(store).RemoveJobsByID(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Jobs {
					switch item.Outcome {
					case api.RemoveJobRemoved:
						fmt.Fprintf(out, "Job %d: removed\n", item.ID)
					case api.RemoveJobNotFound:
						fmt.Fprintf(out, "Job %d: not found\n", item.ID)
					case api.RemoveJobProcessing:
						fmt.Fprintf(out, "Job %d: processing, skipped\n", item.ID)
					}
				}
				fmt.Fprintf(out, "Removed %d of %d jobs\n", result.RemovedCount, len(ids))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case clearCompleted:
					removed, err := store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed jobs\n", removed)
				case clearFailed:
					removed, err := store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed jobs\n", removed)
				default:
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d jobs\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Only remove completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Only remove failed jobs")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
				fmt.Fprintf(out, "jobs table present: %s\n", yesNo(health.TableExists))
				if len(health.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(health.MissingColumns, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", health.TotalJobs)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{titleStatus(string(status)), strconv.Itoa(stats[string(status)])})
	}
	return rows
}

func buildQueueListRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		stage := job.Progress.Label
		if job.Status == string(queue.StatusFailed) && job.FailedStage != "" {
			stage = "failed in " + job.FailedStage
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.AssetID,
			job.Kind,
			job.Status,
			stage,
			fmt.Sprintf("%d%%", job.Progress.Percent),
			job.UpdatedAt,
		})
	}
	return rows
}

func writeJobDetail(out io.Writer, job api.Job) {
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fields := [][2]string{
		{"Asset", job.AssetID},
		{"Kind", job.Kind},
		{"Status", job.Status},
		{"Source", job.SourcePath},
		{"MIME type", job.MIMEType},
		{"Size", strconv.FormatInt(job.SourceSize, 10)},
		{"Stage", job.Progress.Label},
		{"Progress", fmt.Sprintf("%d%%", job.Progress.Percent)},
		{"Message", job.Progress.Message},
		{"Attempts", strconv.Itoa(job.Attempts)},
		{"Created", job.CreatedAt},
		{"Started", job.StartedAt},
		{"Completed", job.CompletedAt},
		{"Options", string(job.Options)},
		{"Result", string(job.Result)},
		{"Error kind", job.ErrorKind},
		{"Error", job.Error},
		{"Failed stage", job.FailedStage},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		fmt.Fprintf(out, "  %-13s %s\n", field[0]+":", field[1])
	}
	if job.NeedsReview {
		fmt.Fprintln(out, "  Needs review:  yes")
	}
}

func titleStatus(status string) string {
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}
