// Package web serves the HTTP API, the browser pages and the websocket
// player bridge.
//
// API routes live under /api and are rate limited per client address.
// Routes that write to the catalog require a bearer token when
// server.api_token is set. The /ws/player bridge pairs one playback session
// and one voice controller with each browser connection: the browser's audio
// element and speech recognizer are driven remotely and report their events
// back over the same socket.
package web
