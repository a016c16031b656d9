package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"sermoncast/internal/blob"
	"sermoncast/internal/config"
	"sermoncast/internal/hls"
	"sermoncast/internal/media/ffprobe"
	"sermoncast/internal/metrics"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/transcode"
)

// Deps are the shared collaborators handed to Build.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
	Emitter *telemetry.Emitter
	// Executor replaces the ffmpeg process runner; nil runs real commands.
	Executor transcode.Executor
}

// Build assembles a Processor from configuration: one engine handle locked to
// the scratch workspace, a transcoder, the HLS packager and the configured
// storage backend.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*Processor, error) {
	engineOpts := []transcode.Option{transcode.WithLogger(deps.Logger)}
	if deps.Executor != nil {
		engineOpts = append(engineOpts, transcode.WithExecutor(deps.Executor))
	}
	engine := transcode.NewEngine(cfg.FFmpegBinary(), cfg.EngineLockPath(), engineOpts...)

	var prober transcode.DurationProber
	if cfg.Media.ProbeDuration {
		prober = ffprobe.New(cfg.FFprobeBinary())
	}
	transcoder := transcode.New(engine, prober, deps.Logger)
	packager := hls.NewPackager(transcoder, deps.Logger)

	uploader, err := blob.NewFromConfig(ctx, cfg, deps.Logger, blob.WithObserver(deps.Metrics.ObserveUpload))
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	proc := NewProcessor(transcoder, packager, uploader, Settings{
		WorkDir:       cfg.JobScratchDir(),
		KeepWorkdir:   cfg.Media.KeepWorkdir,
		RawFallback:   cfg.Media.RawFallback,
		WaveformColor: cfg.Media.WaveformColor,
		MediaRoot:     cfg.Storage.MediaRoot,
	},
		WithLogger(deps.Logger),
		WithMetrics(deps.Metrics),
		WithTelemetry(deps.Emitter),
	)
	proc.engine = engine
	proc.closers = append(proc.closers, engine.Close)
	return proc, nil
}

// Engine returns the engine handle created by Build, or nil.
func (p *Processor) Engine() *transcode.Engine {
	return p.engine
}
