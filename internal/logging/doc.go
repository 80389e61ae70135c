// Package logging assembles structured slog loggers and formatting helpers used
// across podvoice.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers and players can tag
// log lines with request, feed, and session identifiers. A StreamHub keeps a
// window of recent events for the web log feed. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
