package transcode

import (
	"fmt"
	"strings"
)

// Quality selects a bitrate/resolution preset.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality validates a quality label. Empty input yields medium.
func ParseQuality(value string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(value))); q {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality %q", value)
	}
}

// VideoPreset describes the compatibility MP4 encode for one quality.
type VideoPreset struct {
	Width        int
	Height       int
	VideoBitrate int // kbps
	AudioBitrate int // kbps
}

var audioBitrates = map[Quality]int{
	QualityLow:    96,
	QualityMedium: 128,
	QualityHigh:   192,
}

var videoPresets = map[Quality]VideoPreset{
	QualityLow:    {Width: 640, Height: 360, VideoBitrate: 800, AudioBitrate: 96},
	QualityMedium: {Width: 1280, Height: 720, VideoBitrate: 2500, AudioBitrate: 128},
	QualityHigh:   {Width: 1920, Height: 1080, VideoBitrate: 5000, AudioBitrate: 192},
}

// AudioBitrateKbps returns the MP3 bitrate for q, defaulting to medium.
func AudioBitrateKbps(q Quality) int {
	if rate, ok := audioBitrates[q]; ok {
		return rate
	}
	return audioBitrates[QualityMedium]
}

// VideoPresetFor returns the MP4 preset for q, defaulting to medium.
func VideoPresetFor(q Quality) VideoPreset {
	if preset, ok := videoPresets[q]; ok {
		return preset
	}
	return videoPresets[QualityMedium]
}

func kbps(v int) string {
	return fmt.Sprintf("%dk", v)
}

func scaleFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height, width, height)
}
