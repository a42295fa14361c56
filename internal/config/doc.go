// Package config loads, normalizes, and validates cdbs client configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CDBS_API_TOKEN. The Config type centralizes every knob the CLI and the upload
// pipeline need, so state directories and backend credentials are discovered
// in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
