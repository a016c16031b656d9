// Package preflight provides readiness checks for the binaries, directories
// and external services sermoncast depends on.
//
// The daemon runs RunAll at startup and logs failures; the CLI "status"
// command renders the same results. Checks for optional features (ingest,
// Kafka telemetry) are skipped when the feature is disabled.
package preflight
