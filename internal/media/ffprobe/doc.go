// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Prober: runs ffprobe through a replaceable Runner
//   - Result: parsed ffprobe output containing streams and format metadata
//
// The transcoder uses Duration to scale engine progress lines into
// percentages; callers fall back to a size estimate when probing fails.
package ffprobe
