// Package config loads, normalizes, and validates dqmon configuration data.
//
// It supplies repository defaults (including the default three-stage
// pipeline), expands user paths (including tilde shortcuts), reads TOML files,
// and honours the DQMON_ROOT environment fallback for the run root. The Config
// type is threaded explicitly into the worker and monitor packages, so no
// package keeps its own copy of binary paths or verbosity.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated pipeline, and clear validation errors.
package config
