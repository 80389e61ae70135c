// Package config loads, normalizes, and validates podvoice configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PODCAST_INDEX_API_KEY and DATABASE_URL. The Config type centralizes every
// knob the server, the terminal player and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
