package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
	"sermoncast/internal/media"
	"sermoncast/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var assetID string
	var optionsJSON string

	cmd := &cobra.Command{
		Use:   "enqueue <file>",
		Short: "Add an upload to the processing queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := strings.TrimSpace(kindFlag)
			if kind == "" {
				guessed, ok := media.KindForPath(args[0])
				if !ok {
					return fmt.Errorf("cannot infer media kind from %s; pass --kind", args[0])
				}
				kind = string(guessed)
			}
			req := api.EnqueueRequest{
				AssetID:    strings.TrimSpace(assetID),
				Kind:       kind,
				SourcePath: args[0],
			}
			if raw := strings.TrimSpace(optionsJSON); raw != "" {
				if !json.Valid([]byte(raw)) {
					return errors.New("--options must be valid JSON")
				}
				req.Options = json.RawMessage(raw)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(store).Enqueue(cmd.Context(), req)
				out := cmd.OutOrStdout()
				if errors.Is(err, api.ErrAlreadyQueued) && job != nil {
					fmt.Fprintf(out, "Asset %s is already queued as job %d (%s)\n", job.AssetID, job.ID, job.Status)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued job %d for asset %s (%s)\n", job.ID, job.AssetID, job.Kind)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Media kind (audio or video); guessed from the extension when empty")
	cmd.Flags().StringVar(&assetID, "id", "", "Asset id; a random id is generated when empty")
	cmd.Flags().StringVarP(&optionsJSON, "options", "o", "", "Processing options as JSON, applied over the kind's defaults")
	return cmd
}
