// Package logging assembles the structured slog loggers used across slate.
//
// It owns the console/JSON handler selection, centralizes level and output
// plumbing, and exposes typed attr helpers so core code tags log lines with
// the same field names everywhere. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
