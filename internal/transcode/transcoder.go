package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"sermoncast/internal/hls"
	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/services"
)

// DurationProber reports a media file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Size-based duration estimates when probing is unavailable.
const (
	estimateAudioKbps = 128
	estimateVideoKbps = 2500
)

// Transcoder converts sources into web-ready artifacts through the engine.
type Transcoder struct {
	engine *Engine
	prober DurationProber
	logger *slog.Logger
}

// New constructs a transcoder. prober may be nil, in which case durations are
// estimated from file size.
func New(engine *Engine, prober DurationProber, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		engine: engine,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "transcoder"),
	}
}

// Engine exposes the underlying engine handle.
func (t *Transcoder) Engine() *Engine {
	return t.engine
}

// TranscodeAudio encodes src to an MP3 at the quality's bitrate.
func (t *Transcoder) TranscodeAudio(ctx context.Context, src media.Source, quality Quality, outDir string, progress media.ProgressFunc) (media.Blob, error) {
	out := filepath.Join(outDir, "audio.mp3")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src.Path,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", kbps(AudioBitrateKbps(quality)),
		out,
	}
	return t.encode(ctx, "transcode_mp3", src, media.KindAudio, args, out, progress)
}

// TranscodeVideo encodes src to an H.264/AAC MP4 with faststart.
func (t *Transcoder) TranscodeVideo(ctx context.Context, src media.Source, quality Quality, outDir string, progress media.ProgressFunc) (media.Blob, error) {
	preset := VideoPresetFor(quality)
	out := filepath.Join(outDir, "video.mp4")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src.Path,
		"-vf", scaleFilter(preset.Width, preset.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", kbps(preset.VideoBitrate),
		"-maxrate", kbps(preset.VideoBitrate * 3 / 2),
		"-bufsize", kbps(preset.VideoBitrate * 2),
		"-c:a", "aac",
		"-b:a", kbps(preset.AudioBitrate),
		"-movflags", "+faststart",
		out,
	}
	return t.encode(ctx, "transcode_mp4", src, media.KindVideo, args, out, progress)
}

// ExtractThumbnail grabs a single JPEG frame at the given offset. Offsets past
// the end of a known duration fall back to the midpoint.
func (t *Transcoder) ExtractThumbnail(ctx context.Context, src media.Source, seconds float64, outDir string) (media.Blob, error) {
	if seconds < 0 {
		seconds = 0
	}
	if total := t.probeOnly(ctx, src); total > 0 && seconds >= total {
		seconds = total / 2
	}
	out := filepath.Join(outDir, "thumbnail.jpg")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", src.Path,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
	return t.run(ctx, "thumbnail", args, out, nil)
}

// GenerateWaveform renders an amplitude image of the audio track.
func (t *Transcoder) GenerateWaveform(ctx context.Context, src media.Source, width, height int, color, outDir string) (media.Blob, error) {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 120
	}
	if color == "" {
		color = "#3b82f6"
	}
	out := filepath.Join(outDir, "waveform.png")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src.Path,
		"-filter_complex", fmt.Sprintf("showwavespic=s=%dx%d:colors=%s", width, height, color),
		"-frames:v", "1",
		out,
	}
	return t.run(ctx, "waveform", args, out, nil)
}

// EncodeRendition writes one HLS rendition (playlist plus 10-second segments)
// into dir and returns the playlist path.
func (t *Transcoder) EncodeRendition(ctx context.Context, src media.Source, r hls.Rendition, dir string, progress media.ProgressFunc) (string, error) {
	playlist := filepath.Join(dir, r.PlaylistName())
	gop := strconv.Itoa(hls.SegmentSeconds * 24)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src.Path,
		"-vf", scaleFilter(r.Width, r.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-b:v", kbps(r.BitrateKbps),
		"-maxrate", kbps(r.BitrateKbps * 107 / 100),
		"-bufsize", kbps(r.BitrateKbps * 3 / 2),
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-f", "hls",
		"-hls_time", strconv.Itoa(hls.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(dir, r.SegmentPattern()),
		playlist,
	}
	tracker := newProgressTracker(t.duration(ctx, src, media.KindVideo), progress)
	if _, err := t.run(ctx, "package_hls", args, playlist, tracker); err != nil {
		return "", err
	}
	return playlist, nil
}

func (t *Transcoder) encode(ctx context.Context, stage string, src media.Source, kind media.Kind, args []string, out string, progress media.ProgressFunc) (media.Blob, error) {
	tracker := newProgressTracker(t.duration(ctx, src, kind), progress)
	return t.run(ctx, stage, args, out, tracker)
}

func (t *Transcoder) run(ctx context.Context, stage string, args []string, out string, tracker *progressTracker) (media.Blob, error) {
	if t.engine == nil {
		return media.Blob{}, services.Wrap(services.ErrEngineLoad, stage, "engine", "no engine configured", nil)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return media.Blob{}, fmt.Errorf("create output dir: %w", err)
	}
	err := t.engine.Run(ctx, args, func(line string) {
		if tracker != nil {
			tracker.Line(line)
		}
	})
	if err != nil {
		if errors.Is(err, services.ErrEngineLoad) || errors.Is(err, context.Canceled) {
			return media.Blob{}, err
		}
		return media.Blob{}, services.Wrap(services.ErrEncode, stage, "ffmpeg", "", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return media.Blob{}, services.Wrap(services.ErrEncode, stage, "ffmpeg", "produced no output", err)
	}
	if tracker != nil {
		tracker.Done()
	}
	return media.Blob{Path: out, ContentType: media.ContentTypeFor(out), Size: info.Size()}, nil
}

// duration returns the probed duration, or a size-based estimate.
func (t *Transcoder) duration(ctx context.Context, src media.Source, kind media.Kind) float64 {
	if seconds := t.probeOnly(ctx, src); seconds > 0 {
		return seconds
	}
	return EstimateDuration(src.Size, kind)
}

func (t *Transcoder) probeOnly(ctx context.Context, src media.Source) float64 {
	if t.prober == nil {
		return 0
	}
	seconds, err := t.prober.Duration(ctx, src.Path)
	if err != nil {
		t.logger.Debug("duration probe failed; using size estimate",
			logging.String("path", src.Path),
			logging.Error(err),
		)
		return 0
	}
	return seconds
}

// EstimateDuration guesses a duration in seconds from the file size using a
// typical bitrate for the kind.
func EstimateDuration(size int64, kind media.Kind) float64 {
	if size <= 0 {
		return 0
	}
	rate := estimateVideoKbps
	if kind == media.KindAudio {
		rate = estimateAudioKbps
	}
	return float64(size*8) / float64(rate*1000)
}
