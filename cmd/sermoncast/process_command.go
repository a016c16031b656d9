package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sermoncast/internal/media"
	"sermoncast/internal/metrics"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var assetID string
	var optionsJSON string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process one upload in the foreground without the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(verbose)
			if err != nil {
				return err
			}

			item, err := buildAdHocItem(args[0], kindFlag, assetID, optionsJSON)
			if err != nil {
				return err
			}
			asset, err := workflow.AssetFromItem(item)
			if err != nil {
				return err
			}

			reg := metrics.New()
			sink, err := telemetry.NewSink(cfg, logger)
			if err != nil {
				return fmt.Errorf("telemetry sink: %w", err)
			}
			defer sink.Close()

			proc, err := pipeline.Build(cmd.Context(), cfg, pipeline.Deps{
				Logger:  logger,
				Metrics: reg,
				Emitter: telemetry.NewEmitter(sink, telemetry.WithObserver(reg.ObserveEvent)),
			})
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer proc.Close()

			if err := proc.Validate(&asset); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %s as %s (%s)\n", asset.Source.Path, asset.ID, asset.Kind)
			result, err := proc.Process(cmd.Context(), asset, func(u pipeline.Update) {
				fmt.Fprintf(out, "  [%3d%%] %s\n", u.Percent, workflow.StageLabel(string(u.State)))
			})
			if err != nil {
				return err
			}
			printResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "Media kind (audio or video); guessed from the extension when empty")
	cmd.Flags().StringVar(&assetID, "id", "", "Asset id; a random id is generated when empty")
	cmd.Flags().StringVarP(&optionsJSON, "options", "o", "", "Processing options as JSON, applied over the kind's defaults")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Write pipeline logs to stdout and the log directory")
	return cmd
}

// buildAdHocItem shapes CLI input like a stored job so the foreground run
// decodes options exactly as the worker does.
func buildAdHocItem(path, kindFlag, assetID, optionsJSON string) (*queue.Item, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	kind := media.Kind(strings.TrimSpace(kindFlag))
	if kind == "" {
		guessed, ok := media.KindForPath(abs)
		if !ok {
			return nil, fmt.Errorf("cannot infer media kind from %s; pass --kind", filepath.Base(abs))
		}
		kind = guessed
	}
	if strings.TrimSpace(assetID) == "" {
		assetID = uuid.NewString()
	}
	return &queue.Item{
		AssetID:     strings.TrimSpace(assetID),
		Kind:        string(kind),
		SourcePath:  abs,
		MIMEType:    media.GuessMIME(abs),
		SourceSize:  info.Size(),
		OptionsJSON: strings.TrimSpace(optionsJSON),
	}, nil
}

func printResult(out io.Writer, result pipeline.Result) {
	rows := [][]string{}
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, []string{label, value})
		}
	}
	add("Media", result.MediaURL)
	add("Thumbnail", result.ThumbnailURL)
	add("Waveform", result.WaveformURL)
	add("Fallback", result.FallbackURL)
	add("Path", result.Path)
	if result.RawFallback {
		add("Raw fallback", "yes")
	}
	for _, warning := range result.Warnings {
		add("Warning", warning)
	}
	fmt.Fprint(out, renderTable([]string{"Artifact", "Location"}, rows, []columnAlignment{alignLeft, alignLeft}))
}
