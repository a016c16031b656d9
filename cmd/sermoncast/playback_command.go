package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sermoncast/internal/blob"
	"sermoncast/internal/config"
	"sermoncast/internal/queue"
)

func newPlaybackCommand(ctx *commandContext) *cobra.Command {
	playbackCmd := &cobra.Command{
		Use:   "playback",
		Short: "Inspect stored playback state",
	}
	playbackCmd.AddCommand(newPlaybackPositionCommand(ctx))
	return playbackCmd
}

func newPlaybackPositionCommand(ctx *commandContext) *cobra.Command {
	var setValue float64
	var clearPosition bool

	cmd := &cobra.Command{
		Use:   "position <asset-id>",
		Short: "Show, set or clear the resume position of a sermon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID := args[0]
			if err := blob.ValidateAssetID(assetID); err != nil {
				return err
			}
			setting := cmd.Flags().Changed("set")
			if setting && clearPosition {
				return errors.New("specify only one of --set or --clear")
			}
			if setting && setValue < 0 {
				return errors.New("--set must not be negative")
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case clearPosition:
					if err := store.DeletePosition(cmd.Context(), assetID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared resume position for %s\n", assetID)
				case setting:
					if err := store.SavePosition(cmd.Context(), assetID, setValue); err != nil {
						return err
					}
					fmt.Fprintf(out, "Resume position for %s set to %s\n", assetID, formatSeconds(setValue))
				default:
					pos, ok, err := store.LoadPosition(cmd.Context(), assetID)
					if err != nil {
						return err
					}
					if !ok {
						raw, rawErr := store.RawPosition(cmd.Context(), assetID)
						if rawErr == nil && raw != "" {
							fmt.Fprintf(out, "No usable resume position for %s (stored value %q)\n", assetID, raw)
							return nil
						}
						fmt.Fprintf(out, "No resume position for %s\n", assetID)
						return nil
					}
					fmt.Fprintf(out, "Resume position for %s: %s\n", assetID, formatSeconds(pos))
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&setValue, "set", 0, "Store a resume position in seconds")
	cmd.Flags().BoolVar(&clearPosition, "clear", false, "Remove the stored resume position")
	return cmd
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}
