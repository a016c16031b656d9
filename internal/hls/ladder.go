package hls

import "fmt"

// SegmentSeconds is the target duration of every media segment.
const SegmentSeconds = 10

// MasterName is the filename of the master manifest inside a bundle.
const MasterName = "master.m3u8"

// Rendition is one rung of the adaptive ladder.
type Rendition struct {
	Name        string
	Width       int
	Height      int
	BitrateKbps int
}

// PlaylistName returns the media playlist filename for the rendition.
func (r Rendition) PlaylistName() string {
	return r.Name + ".m3u8"
}

// SegmentPattern returns the ffmpeg segment filename template.
func (r Rendition) SegmentPattern() string {
	return "segment_" + r.Name + "_%d.ts"
}

// Bandwidth returns the advertised BANDWIDTH in bits per second.
func (r Rendition) Bandwidth() int {
	return r.BitrateKbps * 1000
}

// Resolution returns the WIDTHxHEIGHT form used in manifests.
func (r Rendition) Resolution() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var ladder = []Rendition{
	{Name: "240p", Width: 426, Height: 240, BitrateKbps: 400},
	{Name: "360p", Width: 640, Height: 360, BitrateKbps: 800},
	{Name: "480p", Width: 854, Height: 480, BitrateKbps: 1400},
	{Name: "720p", Width: 1280, Height: 720, BitrateKbps: 2800},
	{Name: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000},
}

// Ladder returns the fixed rendition ladder in ascending bitrate order.
func Ladder() []Rendition {
	out := make([]Rendition, len(ladder))
	copy(out, ladder)
	return out
}
