// Package logging assembles structured slog loggers and formatting helpers used
// across walker-yt.
//
// It owns the configurable console/JSON handlers, routes file output through a
// size-rotated lumberjack writer, and exposes context-aware helpers so pipeline
// code can automatically tag log lines with run IDs, track IDs, stages, and
// segment indexes. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
