// Package voice turns continuous speech recognition into playback commands.
//
// A Controller owns at most one Recognizer, keeps it alive while the user has
// voice control switched on and maps each final transcript to a single action
// on a Player. Recognizer backends live in internal/speech and in the browser
// bridge of internal/web.
package voice
