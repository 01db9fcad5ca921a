// Package logging assembles structured slog loggers and formatting helpers used
// across dqmon.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the standard attribute keys (worker ids, queues,
// stages, run ids) so monitor and worker log lines can be filtered the same
// way. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
