// Package library combines the podcast directory and the catalog.
//
// It owns the multi-step flows behind the CLI and the HTTP API: fetching a
// podcast by title into the catalog, refreshing the trending list, and
// syncing one feed's details and latest episodes.
package library
