// Package api defines wire-format types and converters for the HTTP API and
// the CLI. It translates queue, workflow and playback models into
// transport-friendly DTOs so consumers render them without coupling to
// internal types.
//
// JobService is the single entry point for submitting uploads: the CLI, the
// HTTP API and the ingest watcher all enqueue through it so validation
// (kind, file type, asset id, options) is applied the same way everywhere.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. Stored options and results are passed through as
// json.RawMessage to avoid double-encoding.
package api
