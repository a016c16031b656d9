// Package pipeline sequences transcoding, HLS packaging and uploads for one
// sermon asset.
//
// A run walks a fixed state plan per kind. Video:
//
//	INIT -> TRANSCODE_MP4 -> UPLOAD_MP4 -> PACKAGE_HLS -> UPLOAD_HLS -> THUMBNAIL -> DONE
//
// Audio:
//
//	INIT -> TRANSCODE_MP3 -> UPLOAD_MP3 -> WAVEFORM -> DONE
//
// States whose option is off are skipped. Each state owns a fixed slice of
// the overall 0-100 progress scale and sub-progress is rescaled into it; the
// reported value never decreases and a successful run ends at exactly 100.
// Thumbnail and waveform failures are logged and omitted from the result.
// Any other failure ends the run with a *StageError naming the state.
package pipeline
