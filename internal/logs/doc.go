// Package logs pages through the local podvoice log file.
//
// `podvoice logs` reads the server's in-memory stream over HTTP; when no
// server is running it falls back to this package so output from `play`
// and earlier server runs stays reachable. Pages are addressed by byte
// offset: a negative offset asks for the last N lines, and follow mode polls
// until a line arrives, the wait expires or the context ends.
package logs
