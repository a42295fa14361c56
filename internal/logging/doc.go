// Package logging assembles structured slog loggers for the cdbs CLI.
//
// It owns the console and JSON handlers, the tee that mirrors console output
// into a per-run JSON log file, and log retention. Context helpers tag lines
// with batch IDs, filenames, and correlation IDs so a single upload can be
// followed across concurrent pipeline tasks. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
