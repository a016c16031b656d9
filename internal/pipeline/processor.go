package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sermoncast/internal/blob"
	"sermoncast/internal/hls"
	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/metrics"
	"sermoncast/internal/services"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/transcode"
)

// Transcoder is the engine-backed conversion surface the processor drives.
type Transcoder interface {
	TranscodeAudio(ctx context.Context, src media.Source, quality transcode.Quality, outDir string, progress media.ProgressFunc) (media.Blob, error)
	TranscodeVideo(ctx context.Context, src media.Source, quality transcode.Quality, outDir string, progress media.ProgressFunc) (media.Blob, error)
	ExtractThumbnail(ctx context.Context, src media.Source, seconds float64, outDir string) (media.Blob, error)
	GenerateWaveform(ctx context.Context, src media.Source, width, height int, color, outDir string) (media.Blob, error)
}

// Packager produces the HLS ladder for a video.
type Packager interface {
	Package(ctx context.Context, src media.Source, dir string, progress media.ProgressFunc) (*hls.Bundle, error)
}

// Uploader stores artifacts and resolves their public URLs.
type Uploader interface {
	Put(ctx context.Context, key string, b media.Blob) (blob.UploadResult, error)
	ResolveURL(key string) string
}

// Asset is one unit of work: an uploaded file and what to make of it.
type Asset struct {
	ID      string
	Kind    media.Kind
	Source  media.Source
	Options Options
}

// Result lists the published artifact URLs. MediaURL is the HLS master
// manifest when the ladder was produced, otherwise the MP4 or MP3.
type Result struct {
	MediaURL     string   `json:"mediaUrl,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	WaveformURL  string   `json:"waveformUrl,omitempty"`
	Path         string   `json:"path,omitempty"`
	FallbackURL  string   `json:"fallbackUrl,omitempty"`
	RawFallback  bool     `json:"rawFallback,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// StageError labels a failure with the state it happened in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", strings.ToLower(string(e.State)), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedState extracts the state a run failed in, or "".
func FailedState(err error) State {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.State
	}
	return ""
}

// Settings are the processor's static knobs.
type Settings struct {
	// WorkDir holds per-run scratch directories.
	WorkDir       string
	KeepWorkdir   bool
	RawFallback   bool
	WaveformColor string
	MediaRoot     string
}

// Processor runs assets through transcode, package and upload.
type Processor struct {
	transcoder Transcoder
	packager   Packager
	uploader   Uploader
	paths      blob.Paths
	settings   Settings
	emitter    *telemetry.Emitter
	metrics    *metrics.Registry
	logger     *slog.Logger
	closers    []func() error

	engine *transcode.Engine
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithTelemetry routes processing outcome events to emitter.
func WithTelemetry(emitter *telemetry.Emitter) ProcessorOption {
	return func(p *Processor) { p.emitter = emitter }
}

// WithMetrics records stage timings and job outcomes.
func WithMetrics(reg *metrics.Registry) ProcessorOption {
	return func(p *Processor) { p.metrics = reg }
}

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// NewProcessor wires the pipeline components.
func NewProcessor(t Transcoder, pk Packager, u Uploader, settings Settings, opts ...ProcessorOption) *Processor {
	if settings.WorkDir == "" {
		settings.WorkDir = os.TempDir()
	}
	p := &Processor{
		transcoder: t,
		packager:   pk,
		uploader:   u,
		paths:      blob.NewPaths(settings.MediaRoot),
		settings:   settings,
		logger:     logging.NewComponentLogger(nil, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.emitter == nil {
		p.emitter = telemetry.NewEmitter(nil)
	}
	return p
}

// Paths exposes the canonical key builders in use.
func (p *Processor) Paths() blob.Paths {
	return p.paths
}

// Close releases resources acquired by Build.
func (p *Processor) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate performs the entry checks of Process without doing any work.
func (p *Processor) Validate(asset *Asset) error {
	if err := blob.ValidateAssetID(asset.ID); err != nil {
		return services.Wrap(services.ErrValidation, "init", "asset id", "", err)
	}
	kind, err := media.ParseKind(string(asset.Kind))
	if err != nil {
		return services.Wrap(services.ErrValidation, "init", "kind", "", err)
	}
	asset.Kind = kind
	if err := media.CheckFileType(kind, asset.Source); err != nil {
		return services.Wrap(services.ErrInvalidFileType, "init", "file type", "", err)
	}
	asset.Options = asset.Options.Normalized()
	return asset.Options.Validate(kind)
}

// run carries the mutable state of one Process call.
type run struct {
	asset   Asset
	quality transcode.Quality
	workDir string
	agg     *aggregator
	result  Result
	logger  *slog.Logger

	mp4    media.Blob
	mp3    media.Blob
	bundle *hls.Bundle
}

// Process runs asset through every planned state. Progress reported to
// onUpdate never decreases and ends at exactly 100 on success. Only thumbnail
// and waveform failures are tolerated; anything else aborts the run with a
// *StageError.
func (p *Processor) Process(ctx context.Context, asset Asset, onUpdate UpdateFunc) (Result, error) {
	started := time.Now()
	p.metrics.JobStarted()
	if err := p.Validate(&asset); err != nil {
		p.fail(ctx, asset, StateInit, err, started)
		return Result{}, &StageError{State: StateInit, Err: err}
	}
	ctx = services.WithAssetID(ctx, asset.ID)
	quality, _ := transcode.ParseQuality(asset.Options.Quality)

	r := &run{
		asset:   asset,
		quality: quality,
		agg:     newAggregator(asset.Kind, onUpdate),
		logger:  logging.WithContext(ctx, p.logger),
	}
	r.agg.Enter(StateInit)

	if err := p.prepare(r); err != nil {
		p.fail(ctx, asset, StateInit, err, started)
		return Result{}, &StageError{State: StateInit, Err: err}
	}
	defer p.cleanup(r)

	plan := Plan(asset.Kind, asset.Options)
	r.logger.Info("processing started",
		logging.String("kind", string(asset.Kind)),
		logging.String("quality", string(quality)),
		logging.Int("steps", len(plan)),
		logging.String(logging.FieldEventType, "processing_started"),
	)

	for _, state := range plan[1:] {
		if err := ctx.Err(); err != nil {
			p.fail(ctx, asset, state, err, started)
			return Result{}, &StageError{State: state, Err: err}
		}
		r.agg.Enter(state)
		stageCtx := services.WithStage(ctx, strings.ToLower(string(state)))
		stepStart := time.Now()
		err := p.step(stageCtx, r, state)
		p.metrics.ObserveStage(string(state), time.Since(stepStart))
		if err == nil {
			continue
		}
		if errors.Is(err, services.ErrEngineLoad) && p.settings.RawFallback && ctx.Err() == nil {
			return p.rawFallback(ctx, r, err, started)
		}
		p.fail(ctx, asset, state, err, started)
		return Result{}, &StageError{State: state, Err: err}
	}

	r.agg.Finish()
	p.complete(ctx, r, started)
	return r.result, nil
}

func (p *Processor) prepare(r *run) error {
	src := &r.asset.Source
	info, err := os.Stat(src.Path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "init", "source", src.Path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "init", "source", "is a directory", nil)
	}
	if src.Size <= 0 {
		src.Size = info.Size()
	}
	if err := os.MkdirAll(p.settings.WorkDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "init", "workspace", "", err)
	}
	r.workDir = filepath.Join(p.settings.WorkDir, "job-"+r.asset.ID+"-"+uuid.NewString()[:8])
	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "init", "workspace", "", err)
	}
	return nil
}

func (p *Processor) cleanup(r *run) {
	if r.workDir == "" || p.settings.KeepWorkdir {
		return
	}
	if err := os.RemoveAll(r.workDir); err != nil {
		r.logger.Warn("failed to remove job workspace",
			logging.String("path", r.workDir),
			logging.Error(err),
		)
	}
}

func (p *Processor) step(ctx context.Context, r *run, state State) error {
	a := r.asset
	switch state {
	case StateTranscodeMP4:
		out, err := p.transcoder.TranscodeVideo(ctx, a.Source, r.quality, r.workDir, r.agg.Stage())
		p.metrics.ObserveEngine("transcode_mp4", err)
		if err != nil {
			return err
		}
		r.mp4 = out
	case StateUploadMP4:
		res, err := p.upload(ctx, r, p.paths.VideoMP4(a.ID), r.mp4, 100)
		if err != nil {
			return err
		}
		r.result.MediaURL = res.URL
		r.result.Path = res.Path
	case StatePackageHLS:
		bundle, err := p.packager.Package(ctx, a.Source, filepath.Join(r.workDir, "hls"), r.agg.Stage())
		p.metrics.ObserveEngine("package_hls", err)
		if err != nil {
			return err
		}
		r.bundle = bundle
	case StateUploadHLS:
		return p.uploadBundle(ctx, r)
	case StateThumbnail:
		out, err := p.transcoder.ExtractThumbnail(ctx, a.Source, a.Options.ThumbnailTime, r.workDir)
		p.metrics.ObserveEngine("thumbnail", err)
		if err == nil {
			var res blob.UploadResult
			if res, err = p.upload(ctx, r, p.paths.Thumbnail(a.ID), out, 100); err == nil {
				r.result.ThumbnailURL = res.URL
			}
		}
		return p.degrade(ctx, r, state, err)
	case StateTranscodeMP3:
		out, err := p.transcoder.TranscodeAudio(ctx, a.Source, r.quality, r.workDir, r.agg.Stage())
		p.metrics.ObserveEngine("transcode_mp3", err)
		if err != nil {
			return err
		}
		r.mp3 = out
	case StateUploadMP3:
		res, err := p.upload(ctx, r, p.paths.AudioMP3(a.ID), r.mp3, 100)
		if err != nil {
			return err
		}
		r.result.MediaURL = res.URL
		r.result.Path = res.Path
	case StateWaveform:
		out, err := p.transcoder.GenerateWaveform(ctx, a.Source, a.Options.WaveformWidth, a.Options.WaveformHeight, p.settings.WaveformColor, r.workDir)
		p.metrics.ObserveEngine("waveform", err)
		if err == nil {
			var res blob.UploadResult
			if res, err = p.upload(ctx, r, p.paths.Waveform(a.ID), out, 100); err == nil {
				r.result.WaveformURL = res.URL
			}
		}
		return p.degrade(ctx, r, state, err)
	default:
		return fmt.Errorf("no handler for state %s", state)
	}
	return nil
}

// degrade swallows a thumbnail or waveform failure unless the run was
// canceled or the engine itself is unavailable.
func (p *Processor) degrade(ctx context.Context, r *run, state State, err error) error {
	if err == nil || ctx.Err() != nil || errors.Is(err, services.ErrEngineLoad) {
		return err
	}
	label := strings.ToLower(string(state))
	logging.WarnWithContext(r.logger, label+" skipped", label+"_failed",
		logging.Stage(label),
		logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the primary media was published; resubmit to retry "+label),
		logging.String(logging.FieldImpact, "asset published without "+label),
	)
	r.result.Warnings = append(r.result.Warnings, fmt.Sprintf("%s: %v", label, err))
	return nil
}

func (p *Processor) upload(ctx context.Context, r *run, key string, b media.Blob, sub int) (blob.UploadResult, error) {
	res, err := p.uploader.Put(ctx, key, b)
	if err != nil {
		return blob.UploadResult{}, err
	}
	r.agg.Stage()(sub)
	return res, nil
}

func (p *Processor) uploadBundle(ctx context.Context, r *run) error {
	if r.bundle == nil {
		return services.Wrap(services.ErrEncode, "upload_hls", "bundle", "no bundle produced", nil)
	}
	files := r.bundle.Files()
	progress := r.agg.Stage()
	for i, f := range files {
		b := media.Blob{Path: f.Path, ContentType: media.ContentTypeFor(f.Name)}
		if _, err := p.uploader.Put(ctx, p.paths.HLSFile(r.asset.ID, f.Name), b); err != nil {
			return err
		}
		progress((i + 1) * 100 / len(files))
	}
	masterKey := p.paths.HLSFile(r.asset.ID, hls.MasterName)
	r.result.FallbackURL = r.result.MediaURL
	r.result.MediaURL = p.uploader.ResolveURL(masterKey)
	r.result.Path = masterKey
	return nil
}

// rawFallback publishes the untouched upload when the engine is unavailable.
func (p *Processor) rawFallback(ctx context.Context, r *run, cause error, started time.Time) (Result, error) {
	a := r.asset
	logging.WarnWithContext(r.logger, "media engine unavailable; publishing original upload", "raw_fallback",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "install ffmpeg or fix media.ffmpeg_binary, then resubmit"),
		logging.String(logging.FieldImpact, "asset published without transcoding"),
	)
	r.agg.Enter(StateRawUpload)
	key := p.paths.RawOriginal(a.Kind, a.ID, a.Source.Ext())
	contentType := a.Source.MIMEType
	if contentType == "" {
		contentType = media.ContentTypeFor(a.Source.Path)
	}
	res, err := p.upload(ctx, r, key, media.Blob{Path: a.Source.Path, ContentType: contentType, Size: a.Source.Size}, 100)
	if err != nil {
		p.fail(ctx, a, StateRawUpload, err, started)
		return Result{}, &StageError{State: StateRawUpload, Err: err}
	}
	r.result = Result{
		MediaURL:    res.URL,
		Path:        res.Path,
		RawFallback: true,
		Warnings:    []string{"media engine unavailable: " + cause.Error()},
	}
	r.agg.Finish()
	p.complete(ctx, r, started)
	return r.result, nil
}

func (p *Processor) complete(ctx context.Context, r *run, started time.Time) {
	outcome := "completed"
	if r.result.RawFallback {
		outcome = "fallback"
	}
	p.metrics.JobFinished(string(r.asset.Kind), outcome)
	fields := map[string]any{
		"kind":        string(r.asset.Kind),
		"mediaUrl":    r.result.MediaURL,
		"durationMs":  time.Since(started).Milliseconds(),
		"rawFallback": r.result.RawFallback,
	}
	if r.result.ThumbnailURL != "" {
		fields["thumbnailUrl"] = r.result.ThumbnailURL
	}
	if r.result.WaveformURL != "" {
		fields["waveformUrl"] = r.result.WaveformURL
	}
	if len(r.result.Warnings) > 0 {
		fields["warnings"] = len(r.result.Warnings)
	}
	p.emitter.Emit(ctx, telemetry.EventProcessingCompleted, r.asset.ID, fields)
	r.logger.Info("processing completed",
		logging.String(logging.FieldEventType, "processing_completed"),
		logging.String("media_url", r.result.MediaURL),
		logging.Bool("raw_fallback", r.result.RawFallback),
		logging.Duration("elapsed", time.Since(started)),
	)
}

func (p *Processor) fail(ctx context.Context, asset Asset, state State, err error, started time.Time) {
	p.metrics.JobFinished(string(asset.Kind), "failed")
	label := strings.ToLower(string(state))
	p.emitter.Emit(ctx, telemetry.EventProcessingFailed, asset.ID, map[string]any{
		"kind":       string(asset.Kind),
		"stage":      string(state),
		"errorKind":  services.ErrorKind(err),
		"error":      err.Error(),
		"durationMs": time.Since(started).Milliseconds(),
	})
	logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "processing failed", "processing_failed",
		logging.AssetID(asset.ID),
		logging.Stage(label),
		logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidFileType):
		return "upload an audio or video file matching the declared kind"
	case errors.Is(err, services.ErrValidation):
		return "fix the processing options and resubmit"
	case errors.Is(err, services.ErrEngineLoad):
		return "install ffmpeg or set media.ffmpeg_binary; enable media.raw_fallback to publish originals"
	case errors.Is(err, services.ErrEncode):
		return "inspect the source file with ffprobe and resubmit"
	case errors.Is(err, services.ErrUpload):
		return "check storage credentials and connectivity, then resubmit"
	default:
		return "check logs for details and resubmit"
	}
}
