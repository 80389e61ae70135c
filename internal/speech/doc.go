// Package speech provides recognizer backends for the voice controller: a
// readline console that treats each typed line as a final transcript and a
// streaming websocket client for hosted speech-to-text services.
package speech
