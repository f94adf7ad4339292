// Package config loads, normalizes, and validates scenecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENECAST_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need, so queue ceilings, provider endpoints, and data directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
