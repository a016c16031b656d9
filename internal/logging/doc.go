// Package logging builds the structured slog loggers used across sermoncast.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag records with job IDs, asset IDs, pipeline
// stages and request correlation IDs. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
