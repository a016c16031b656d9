// Package deps checks that the external binaries the engine shells out to
// (ffmpeg, ffprobe) are installed and reports their versions.
package deps
