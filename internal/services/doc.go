// Package services defines shared utilities consumed by the catalog, the
// directory client, the web handlers and the players.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, feed IDs, and player session
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and HTTPStatus which
//     translates those markers into API response codes.
package services
