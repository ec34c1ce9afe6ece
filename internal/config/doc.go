// Package config loads, normalizes, and validates walker-yt configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file that sits beside
// the config, and honours environment fallbacks such as WALKER_YT_CACHE_DIR
// and WALKER_YT_NTFY_TOPIC. The Config type centralizes every knob the
// pipeline and CLI need: cache and state directories, external tool binaries,
// separation resource caps, and the readiness thresholds that decide when
// playback may begin.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
