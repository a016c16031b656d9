// Package config loads, normalizes, and validates sermoncast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as SERMONCAST_S3_BUCKET and KAFKA_BROKERS. The
// Config type centralizes every knob the daemon and CLI need so that engine
// binaries, storage backends and telemetry sinks are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
