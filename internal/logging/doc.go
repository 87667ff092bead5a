// Package logging assembles structured slog loggers and formatting helpers
// used across coachflow.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code tags log lines with the
// run ID, stage, file and student automatically. NewNop provides a silent
// logger for tests and wiring code that cannot fail.
package logging
