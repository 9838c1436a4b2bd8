// Package config loads, normalizes, and validates Easel's TOML configuration.
package config
