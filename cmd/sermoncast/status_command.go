package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
	"sermoncast/internal/preflight"
	"sermoncast/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				daemonStatus, err := fetchDaemonStatus(cmd.Context(), cfg)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warn:", err)
				}

				var depStatuses []api.DependencyStatus
				var checks []api.CheckStatus
				lines := renderSectionHeader("Daemon", colorize)
				if daemonStatus != nil && daemonStatus.Running {
					lines = append(lines, renderStatusLine("sermoncast", statusOK, fmt.Sprintf("Running (pid %d)", daemonStatus.PID), colorize))
					lines = append(lines, renderStatusLine("Playback sessions", statusInfo, strconv.Itoa(daemonStatus.Sessions), colorize))
					if current := daemonStatus.Workflow.Current; current != nil {
						lines = append(lines, renderStatusLine("Processing", statusInfo,
							fmt.Sprintf("job %d %s %d%%", current.ID, current.Progress.Label, current.Progress.Percent), colorize))
					}
					if daemonStatus.Workflow.LastError != "" {
						lines = append(lines, renderStatusLine("Last error", statusWarn, daemonStatus.Workflow.LastError, colorize))
					}
					depStatuses = daemonStatus.Dependencies
					checks = daemonStatus.Checks
				} else {
					lines = append(lines, renderStatusLine("sermoncast", statusError, "Not running", colorize))
					depStatuses = api.FromDependencies(preflight.CheckSystemDeps(cmd.Context(), cfg))
					checks = api.FromChecks(preflight.RunAll(cmd.Context(), cfg))
				}

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
				lines = append(lines, dependencyLines(depStatuses, colorize)...)
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Checks", colorize)...)
				lines = append(lines, checkLines(checks, colorize)...)
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Queue", colorize)...)
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}

				stats, err := api.NewJobService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
