// Package playback owns the single audio session: which track is bound to the
// one underlying media resource, whether it is advancing, and how (position,
// rate, mute).
//
// State lives in a Session and changes only through dispatched Actions reduced
// by Reduce. Callers use the Session's action methods (Play, Pause, Toggle,
// SeekBy, Seek, SetPlaybackRate, ToggleMute) and queries (IsPlaying,
// Snapshot); observers register with Subscribe. The Playing flag follows the
// media's own play/pause callbacks rather than the caller's request, so a play
// request against a resource that is still loading shows up only once audio
// actually starts.
//
// Media failures are swallowed and logged at debug level. This is a
// best-effort control surface: nothing here returns an error to the caller.
package playback
