// Package main hosts the podvoice CLI entrypoint and command graph.
//
// The Cobra command tree wires the catalog, the podcast directory client and
// the playback stack together: `serve` runs the HTTP server with the browser
// player, `play` drives the local speaker with terminal or streaming voice
// control, and the directory commands query and import podcasts. Status and
// log commands talk to a running server over its JSON API.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through flags and output formatting.
package main
