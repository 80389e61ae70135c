// Package api defines the wire types of the HTTP API and a small client for
// the read-only endpoints the CLI consumes.
//
// Directory and catalog payloads keep the shapes of the upstream services:
// directory objects use camelCase keys, catalog rows use snake_case columns.
// Envelope types defined here (Status, LogStreamResponse, ErrorResponse) use
// camelCase.
package api
