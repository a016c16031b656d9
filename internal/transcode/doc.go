// Package transcode wraps the ffmpeg engine that produces every sermon
// artifact.
//
// Engine is the single shared process handle: lazily loaded, serialized by a
// mutex, and guarded across processes by a workspace file lock. Transcoder
// builds the ffmpeg argument lists for MP3, MP4, thumbnail, waveform and HLS
// rendition outputs, and turns `time=` stats lines into per-operation
// progress scaled against the probed (or estimated) duration.
package transcode
