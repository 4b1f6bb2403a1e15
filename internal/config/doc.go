// Package config loads, normalizes, and validates montage configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI and compiler need: toolchain binaries, probe concurrency, timeline
// tuning thresholds, and fallback output settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
