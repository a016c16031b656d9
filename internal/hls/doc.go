// Package hls builds the adaptive streaming output for sermon videos.
//
// The ladder is fixed at five renditions (240p through 1080p). Packager asks
// an Encoder for each rung in ascending order, collects the playlist and its
// segments, then writes a version 3 master manifest. ParseMaster and
// ParseMediaPlaylist serve the read side and Bundle.Validate.
package hls
