package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"sermoncast/internal/media"
	"sermoncast/internal/services"
	"sermoncast/internal/transcode"
)

// Default option values.
const (
	DefaultThumbnailSeconds = 5.0
	DefaultWaveformWidth    = 800
	DefaultWaveformHeight   = 120
)

// Options selects the artifacts produced for one asset.
type Options struct {
	GenerateThumbnail bool    `json:"generateThumbnail"`
	TranscodeAudio    bool    `json:"transcodeAudio"`
	TranscodeVideo    bool    `json:"transcodeVideo"`
	GenerateWaveform  bool    `json:"generateWaveform"`
	GenerateHLS       bool    `json:"generateHLS"`
	Quality           string  `json:"quality"`
	ThumbnailTime     float64 `json:"thumbnailTime"`
	WaveformWidth     int     `json:"waveformWidth,omitempty"`
	WaveformHeight    int     `json:"waveformHeight,omitempty"`
}

// DefaultOptions returns the full treatment for kind: MP4, HLS and a
// thumbnail for video; MP3 and a waveform for audio. Decode request payloads
// on top of these so omitted fields keep their defaults.
func DefaultOptions(kind media.Kind) Options {
	opts := Options{
		Quality:        string(transcode.QualityMedium),
		ThumbnailTime:  DefaultThumbnailSeconds,
		WaveformWidth:  DefaultWaveformWidth,
		WaveformHeight: DefaultWaveformHeight,
	}
	switch kind {
	case media.KindVideo:
		opts.TranscodeVideo = true
		opts.GenerateHLS = true
		opts.GenerateThumbnail = true
	case media.KindAudio:
		opts.TranscodeAudio = true
		opts.GenerateWaveform = true
	}
	return opts
}

// Normalized fills zero-valued sizes and quality with defaults.
func (o Options) Normalized() Options {
	o.Quality = strings.ToLower(strings.TrimSpace(o.Quality))
	if o.Quality == "" {
		o.Quality = string(transcode.QualityMedium)
	}
	if o.WaveformWidth == 0 {
		o.WaveformWidth = DefaultWaveformWidth
	}
	if o.WaveformHeight == 0 {
		o.WaveformHeight = DefaultWaveformHeight
	}
	return o
}

// Validate rejects contradictory combinations for kind. GenerateHLS is
// ignored unless TranscodeVideo is set.
func (o Options) Validate(kind media.Kind) error {
	var problems []error
	if _, err := transcode.ParseQuality(o.Quality); err != nil {
		problems = append(problems, err)
	}
	switch kind {
	case media.KindVideo:
		if o.TranscodeAudio {
			problems = append(problems, errors.New("transcodeAudio is not valid for video"))
		}
		if o.GenerateWaveform {
			problems = append(problems, errors.New("generateWaveform is not valid for video"))
		}
		if !o.TranscodeVideo && !o.GenerateThumbnail {
			problems = append(problems, errors.New("nothing to do: enable transcodeVideo or generateThumbnail"))
		}
	case media.KindAudio:
		if o.TranscodeVideo {
			problems = append(problems, errors.New("transcodeVideo is not valid for audio"))
		}
		if o.GenerateThumbnail {
			problems = append(problems, errors.New("generateThumbnail is not valid for audio"))
		}
		if !o.TranscodeAudio && !o.GenerateWaveform {
			problems = append(problems, errors.New("nothing to do: enable transcodeAudio or generateWaveform"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown media kind %q", kind))
	}
	if o.ThumbnailTime < 0 {
		problems = append(problems, fmt.Errorf("thumbnailTime must be >= 0, got %v", o.ThumbnailTime))
	}
	if o.GenerateWaveform && (o.WaveformWidth < 0 || o.WaveformHeight < 0) {
		problems = append(problems, fmt.Errorf("waveform size %dx%d is invalid", o.WaveformWidth, o.WaveformHeight))
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "init", "options", "", errors.Join(problems...))
}
